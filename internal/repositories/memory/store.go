// Package memory - in-process реализация repositories.Store для development
// (database.driver: memory) и тестов сервисов.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"moviestream_backend/internal/models"
	"moviestream_backend/internal/repositories"

	"github.com/google/uuid"
)

var ErrDuplicate = errors.New("duplicate key")

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	now  func() time.Time

	payments   map[string]models.PaymentTransaction
	plans      map[string]models.SubscriptionPlan
	subs       map[string]models.UserSubscription // по user_id
	movies     map[string]models.Movie
	purchases  map[string]models.VideoPurchase // user_id|movie_id
	saved      map[string]models.SavedMovie    // user_id|movie_id
	violations []models.SecurityViolation
	bans       map[string]models.UserBan
	daily      map[string]models.DailyWatchTime // user_id|date
	users      map[string]models.User
}

type Option func(*Store)

// WithClock задает часы для CreatedAt и прочих отметок времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		payments:  map[string]models.PaymentTransaction{},
		plans:     map[string]models.SubscriptionPlan{},
		subs:      map[string]models.UserSubscription{},
		movies:    map[string]models.Movie{},
		purchases: map[string]models.VideoPurchase{},
		saved:     map[string]models.SavedMovie{},
		bans:      map[string]models.UserBan{},
		daily:     map[string]models.DailyWatchTime{},
		users:     map[string]models.User{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repositories.Store = (*Store)(nil)

func (s *Store) Payments() repositories.PaymentRepository           { return &paymentRepo{s} }
func (s *Store) Subscriptions() repositories.SubscriptionRepository { return &subscriptionRepo{s} }
func (s *Store) Movies() repositories.MovieRepository               { return &movieRepo{s} }
func (s *Store) Security() repositories.SecurityRepository          { return &securityRepo{s} }
func (s *Store) Users() repositories.UserRepository                 { return &userRepo{s} }

// WithinTransaction сериализует транзакции между собой, что повторяет
// поведение SELECT ... FOR UPDATE. Записи при ошибке не откатываются.
func (s *Store) WithinTransaction(ctx context.Context, fn func(tx repositories.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(txStore{s})
}

// txStore - вложенный WithinTransaction переиспользует текущую транзакцию.
type txStore struct {
	*Store
}

func (t txStore) WithinTransaction(_ context.Context, fn func(tx repositories.Store) error) error {
	return fn(t)
}

func (s *Store) stamp(base *models.BaseModel) {
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	now := s.now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

func pairKey(a, b string) string {
	return a + "|" + b
}

// Seed helpers для development и тестов

func (s *Store) SeedPlan(plan models.SubscriptionPlan) models.SubscriptionPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&plan.BaseModel)
	s.plans[plan.ID] = plan
	return plan
}

func (s *Store) SeedMovie(movie models.Movie) models.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&movie.BaseModel)
	s.movies[movie.ID] = movie
	return movie
}

func (s *Store) SeedUser(user models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&user.BaseModel)
	s.users[user.ID] = user
	return user
}

// Counts - снимок числа записей, используется в тестах на идемпотентность.
type Counts struct {
	Purchases     int
	Saved         int
	Subscriptions int
	Bans          int
	Violations    int
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{
		Purchases:     len(s.purchases),
		Saved:         len(s.saved),
		Subscriptions: len(s.subs),
		Bans:          len(s.bans),
		Violations:    len(s.violations),
	}
}
