package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store объединяет репозитории и дает транзакционную область.
// Внутри WithinTransaction все репозитории работают на одной транзакции.
type Store interface {
	Payments() PaymentRepository
	Subscriptions() SubscriptionRepository
	Movies() MovieRepository
	Security() SecurityRepository
	Users() UserRepository

	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Payments() PaymentRepository {
	return NewPaymentRepository(s.db)
}

func (s *GormStore) Subscriptions() SubscriptionRepository {
	return NewSubscriptionRepository(s.db)
}

func (s *GormStore) Movies() MovieRepository {
	return NewMovieRepository(s.db)
}

func (s *GormStore) Security() SecurityRepository {
	return NewSecurityRepository(s.db)
}

func (s *GormStore) Users() UserRepository {
	return NewUserRepository(s.db)
}

func (s *GormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
