package repositories

import (
	"context"
	"errors"
	"time"

	"moviestream_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPaymentNotFound = errors.New("payment transaction not found")
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.PaymentTransaction) error
	// FindByRef ищет по ссылке провайдера или по локальной TXN-ссылке
	FindByRef(ctx context.Context, ref string) (*models.PaymentTransaction, error)
	// FindByRefForUpdate - то же самое с блокировкой строки (SELECT ... FOR UPDATE)
	FindByRefForUpdate(ctx context.Context, ref string) (*models.PaymentTransaction, error)
	FindByUser(ctx context.Context, userID string) ([]models.PaymentTransaction, error)
	AttachProviderSession(ctx context.Context, id string, session ProviderSession) error
	// TransitionStatus - compare-and-swap: меняет статус только из from.
	// Возвращает false, если строку уже перевел кто-то другой.
	TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, source models.PaymentSource, completedAt *time.Time) (bool, error)
}

// ProviderSession - данные, которые провайдер вернул при создании оплаты.
type ProviderSession struct {
	TransactionRef string
	CheckoutURL    string
	KHQR           string
	PaymentMethod  string
	ExpiresAt      *time.Time
}

type PaymentRepositoryImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &PaymentRepositoryImpl{db: db}
}

func (r *PaymentRepositoryImpl) Create(ctx context.Context, payment *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepositoryImpl) FindByRef(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	return r.findByRef(r.db.WithContext(ctx), ref)
}

func (r *PaymentRepositoryImpl) FindByRefForUpdate(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	return r.findByRef(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ref)
}

func (r *PaymentRepositoryImpl) findByRef(db *gorm.DB, ref string) (*models.PaymentTransaction, error) {
	var payment models.PaymentTransaction
	err := db.Where("transaction_ref = ? OR local_ref = ?", ref, ref).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepositoryImpl) FindByUser(ctx context.Context, userID string) ([]models.PaymentTransaction, error) {
	var payments []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepositoryImpl) AttachProviderSession(ctx context.Context, id string, session ProviderSession) error {
	result := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"transaction_ref": session.TransactionRef,
			"checkout_url":    session.CheckoutURL,
			"khqr":            session.KHQR,
			"payment_method":  session.PaymentMethod,
			"expires_at":      session.ExpiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepositoryImpl) TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, source models.PaymentSource, completedAt *time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":       to,
			"source":       source,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
