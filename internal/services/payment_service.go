package services

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"moviestream_backend/internal/dto"
	"moviestream_backend/internal/email"
	"moviestream_backend/internal/lock"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/metrics"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/payment"
	"moviestream_backend/internal/repositories"
	"moviestream_backend/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	monthlyPlanDuration = "monthly"
	defaultPlanDays     = 30
	receiptTimeout      = 10 * time.Second
)

// amountTolerance - допустимое расхождение суммы в callback.
var amountTolerance = decimal.RequireFromString("0.01")

// Outcome - что сообщил провайдер о платеже.
type Outcome struct {
	Status models.PaymentStatus
	PaidAt *time.Time
}

type PaymentSettings struct {
	PublicBaseURL string
}

type PaymentService interface {
	InitiateSubscriptionPayment(ctx context.Context, userID string) (*dto.PaymentSession, error)
	InitiateVideoPurchase(ctx context.Context, userID, movieID string) (*dto.PaymentSession, error)

	// ConfirmPayment - единственная точка перевода платежа из pending.
	// Повторный вызов для завершенного платежа ничего не меняет (Applied=false).
	ConfirmPayment(ctx context.Context, paymentRef string, source models.PaymentSource, outcome Outcome) (*dto.PaymentResult, error)

	HandleWebhook(ctx context.Context, body []byte, signature string) (*dto.PaymentResult, error)
	HandleCallback(ctx context.Context, params url.Values) (*dto.PaymentResult, error)
	VerifyPayment(ctx context.Context, userID, paymentRef string) (*dto.PaymentResult, error)
	VerifyVideoPurchase(ctx context.Context, userID, movieID, paymentRef string) (*dto.PurchaseStatus, error)
	HasPurchased(ctx context.Context, userID, movieID string) (bool, error)

	GetPaymentHistory(ctx context.Context, userID string) (*dto.PaymentHistory, error)
	GetSubscriptionStatus(ctx context.Context, userID string) (*dto.SubscriptionStatus, error)
	GetPaymentQR(ctx context.Context, userID, paymentRef string, size int) ([]byte, error)

	// MockCheckout имитирует страницу оплаты mock-провайдера и возвращает
	// подписанный URL callback. Для реального провайдера недоступен.
	MockCheckout(ctx context.Context, params url.Values) (string, error)
}

type paymentService struct {
	store    repositories.Store
	provider payment.Provider
	locker   lock.Locker
	mailer   email.Sender
	settings PaymentSettings
	now      func() time.Time
}

func NewPaymentService(
	store repositories.Store,
	provider payment.Provider,
	locker lock.Locker,
	mailer email.Sender,
	settings PaymentSettings,
	now func() time.Time,
) PaymentService {
	if now == nil {
		now = time.Now
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &paymentService{
		store:    store,
		provider: provider,
		locker:   locker,
		mailer:   mailer,
		settings: settings,
		now:      now,
	}
}

// =======================
// 1. Создание оплаты
// =======================

func (s *paymentService) InitiateSubscriptionPayment(ctx context.Context, userID string) (*dto.PaymentSession, error) {
	sub, err := s.store.Subscriptions().FindUserSubscription(ctx, userID)
	if err != nil && !errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return nil, apperrors.InternalError(err)
	}
	if sub.IsActive(s.now()) {
		return nil, apperrors.ErrAlreadySubscribed
	}

	plan, err := s.store.Subscriptions().FindActivePlanByDuration(ctx, monthlyPlanDuration)
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionPlanNotFound) {
			return nil, apperrors.ErrPlanNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	planID := plan.ID
	tx := &models.PaymentTransaction{
		UserID:   userID,
		Kind:     models.PaymentKindSubscription,
		PlanID:   &planID,
		Amount:   plan.Price,
		Currency: currencyOrDefault(plan.Currency),
	}
	return s.initiate(ctx, tx, plan.Name, "")
}

func (s *paymentService) InitiateVideoPurchase(ctx context.Context, userID, movieID string) (*dto.PaymentSession, error) {
	movie, err := s.store.Movies().FindByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, repositories.ErrMovieNotFound) {
			return nil, apperrors.ErrMovieNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	if movie.IsFree {
		return nil, apperrors.ErrConflict(nil, "video", "Movie is free to watch")
	}

	purchased, err := s.store.Movies().HasPurchase(ctx, userID, movieID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if purchased {
		return nil, apperrors.ErrAlreadyPurchased
	}

	id := movie.ID
	tx := &models.PaymentTransaction{
		UserID:   userID,
		Kind:     models.PaymentKindVideo,
		MovieID:  &id,
		Amount:   movie.PriceOrDefault(),
		Currency: currencyOrDefault(movie.Currency),
	}
	session, err := s.initiate(ctx, tx, movie.Title, movie.ID)
	if err != nil {
		return nil, err
	}
	session.MovieID = movie.ID
	session.MovieTitle = movie.Title
	return session, nil
}

func (s *paymentService) initiate(ctx context.Context, tx *models.PaymentTransaction, description, movieID string) (*dto.PaymentSession, error) {
	tx.Status = models.PaymentStatusPending
	tx.LocalRef = "TXN-" + uuid.NewString()
	if err := s.store.Payments().Create(ctx, tx); err != nil {
		return nil, apperrors.InternalError(fmt.Errorf("create payment: %w", err))
	}

	ctx = logger.WithCorrelationID(ctx, tx.LocalRef)
	planID := ""
	if tx.PlanID != nil {
		planID = *tx.PlanID
	}

	res, err := s.provider.InitiatePayment(ctx, payment.InitiateRequest{
		UserID:      tx.UserID,
		PlanID:      planID,
		Reference:   tx.LocalRef,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		CallbackURL: s.callbackURL(),
		Description: description,
	})
	if err != nil {
		logger.CtxWithError(ctx, "Payment provider failed to create session", err, "provider", s.provider.Name())
		if _, terr := s.store.Payments().TransitionStatus(ctx, tx.ID, models.PaymentStatusPending, models.PaymentStatusFailed, "", nil); terr != nil {
			logger.CtxWithError(ctx, "Failed to mark payment as failed", terr)
		}
		return nil, apperrors.ErrProviderUnavailable(err)
	}

	expiresAt := res.ExpiresAt
	if err := s.store.Payments().AttachProviderSession(ctx, tx.ID, repositories.ProviderSession{
		TransactionRef: res.PaymentRef,
		CheckoutURL:    res.CheckoutURL,
		KHQR:           res.KHQR,
		PaymentMethod:  res.Method,
		ExpiresAt:      &expiresAt,
	}); err != nil {
		return nil, apperrors.InternalError(fmt.Errorf("attach provider session: %w", err))
	}

	metrics.RecordPaymentInitiated(string(tx.Kind), s.provider.Name())
	logger.CtxInfo(ctx, "Payment initiated",
		"payment_ref", res.PaymentRef,
		"kind", tx.Kind,
		"movie_id", movieID,
		"amount", tx.Amount.StringFixed(2),
		"provider", s.provider.Name(),
	)

	return &dto.PaymentSession{
		PaymentID:   tx.ID,
		PaymentRef:  res.PaymentRef,
		LocalRef:    tx.LocalRef,
		CheckoutURL: res.CheckoutURL,
		KHQR:        res.KHQR,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		ExpiresAt:   res.ExpiresAt.Unix(),
	}, nil
}

// =======================
// 2. Подтверждение
// =======================

func (s *paymentService) ConfirmPayment(ctx context.Context, paymentRef string, source models.PaymentSource, outcome Outcome) (*dto.PaymentResult, error) {
	ctx = logger.WithCorrelationID(ctx, paymentRef)

	current, err := s.store.Payments().FindByRef(ctx, paymentRef)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			logger.CtxError(ctx, "Confirmation for unknown payment", "payment_ref", paymentRef, "source", source)
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	if outcome.Status == models.PaymentStatusPending || !outcome.Status.IsValid() {
		return &dto.PaymentResult{Status: current.Status, PaymentID: current.ID}, nil
	}

	release, err := s.locker.Acquire(ctx, "payment:confirm:"+current.UserID)
	if err != nil {
		return nil, apperrors.InternalError(fmt.Errorf("acquire confirmation lock: %w", err))
	}
	defer release()

	var (
		result  *models.PaymentTransaction
		applied bool
	)
	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		p, err := tx.Payments().FindByRefForUpdate(ctx, paymentRef)
		if err != nil {
			return err
		}
		result = p
		if p.Status.IsTerminal() {
			return nil
		}

		now := s.now()
		var completedAt *time.Time
		if outcome.Status == models.PaymentStatusCompleted {
			completedAt = &now
		}

		ok, err := tx.Payments().TransitionStatus(ctx, p.ID, models.PaymentStatusPending, outcome.Status, source, completedAt)
		if err != nil {
			return fmt.Errorf("transition payment: %w", err)
		}
		if !ok {
			fresh, err := tx.Payments().FindByRef(ctx, paymentRef)
			if err != nil {
				return err
			}
			result = fresh
			return nil
		}

		p.Status = outcome.Status
		p.Source = source
		p.CompletedAt = completedAt
		applied = true

		if outcome.Status != models.PaymentStatusCompleted {
			return nil
		}
		switch p.Kind {
		case models.PaymentKindSubscription:
			return s.applySubscription(ctx, tx, p, now)
		case models.PaymentKindVideo:
			return s.applyVideoPurchase(ctx, tx, p, now)
		}
		return nil
	})
	if err != nil {
		logger.CtxWithError(ctx, "Payment confirmation failed", err, "source", source)
		return nil, apperrors.InternalError(err)
	}

	metrics.RecordConfirmation(string(source), string(result.Status), applied)
	logger.PaymentLog(ctx, paymentRef, string(source), string(result.Status), applied)

	if applied && result.Status == models.PaymentStatusCompleted {
		s.sendReceipt(ctx, result, outcome.PaidAt)
	}

	return &dto.PaymentResult{Status: result.Status, PaymentID: result.ID, Applied: applied}, nil
}

// applySubscription продлевает ту же строку подписки; активная подписка не трогается.
func (s *paymentService) applySubscription(ctx context.Context, tx repositories.Store, p *models.PaymentTransaction, now time.Time) error {
	days := defaultPlanDays
	planID := ""
	if p.PlanID != nil {
		planID = *p.PlanID
		plan, err := tx.Subscriptions().FindPlanByID(ctx, planID)
		if err != nil && !errors.Is(err, repositories.ErrSubscriptionPlanNotFound) {
			return fmt.Errorf("find plan: %w", err)
		}
		if plan != nil && plan.DurationDays > 0 {
			days = plan.DurationDays
		}
	}

	sub, err := tx.Subscriptions().FindUserSubscriptionForUpdate(ctx, p.UserID)
	if err != nil && !errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return fmt.Errorf("find subscription: %w", err)
	}

	if sub == nil {
		end := now.AddDate(0, 0, days)
		return tx.Subscriptions().CreateUserSubscription(ctx, &models.UserSubscription{
			UserID:             p.UserID,
			PlanID:             planID,
			Status:             models.SubscriptionStatusActive,
			StartDate:          now,
			EndDate:            &end,
			LastTransactionRef: p.LocalRef,
		})
	}

	if sub.IsActive(now) {
		logger.CtxWarn(ctx, "Payment completed for already active subscription", "subscription_id", sub.ID)
		return nil
	}

	base := now
	if sub.EndDate != nil && sub.EndDate.After(now) {
		base = *sub.EndDate
	}
	end := base.AddDate(0, 0, days)
	sub.EndDate = &end
	sub.Status = models.SubscriptionStatusActive
	sub.StartDate = now
	sub.CancelledAt = nil
	sub.LastTransactionRef = p.LocalRef
	if planID != "" {
		sub.PlanID = planID
	}
	return tx.Subscriptions().UpdateUserSubscription(ctx, sub)
}

func (s *paymentService) applyVideoPurchase(ctx context.Context, tx repositories.Store, p *models.PaymentTransaction, now time.Time) error {
	if p.MovieID == nil {
		return fmt.Errorf("video payment %s has no movie", p.ID)
	}
	movieID := *p.MovieID

	purchased, err := tx.Movies().HasPurchase(ctx, p.UserID, movieID)
	if err != nil {
		return fmt.Errorf("check purchase: %w", err)
	}
	if !purchased {
		if err := tx.Movies().CreatePurchase(ctx, &models.VideoPurchase{
			UserID:         p.UserID,
			MovieID:        movieID,
			Amount:         p.Amount,
			Currency:       p.Currency,
			TransactionRef: p.LocalRef,
			PurchasedAt:    now,
		}); err != nil {
			return fmt.Errorf("create purchase: %w", err)
		}
	}

	saved, err := tx.Movies().IsSaved(ctx, p.UserID, movieID)
	if err != nil {
		return fmt.Errorf("check saved: %w", err)
	}
	if !saved {
		if err := tx.Movies().AddSaved(ctx, p.UserID, movieID); err != nil {
			return fmt.Errorf("add saved: %w", err)
		}
	}
	return nil
}

// =======================
// 3. Точки входа
// =======================

func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*dto.PaymentResult, error) {
	st, err := s.provider.ParseWebhook(body, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			metrics.RecordSignatureFailure("webhook")
			logger.CtxWarn(ctx, "Webhook signature rejected", "provider", s.provider.Name())
			return nil, apperrors.ErrInvalidPaymentSignature
		}
		return nil, apperrors.NewBadRequestError("Malformed webhook payload")
	}

	if st.Status == payment.StatusCompleted && !st.Amount.IsZero() {
		p, err := s.findPayment(ctx, st.PaymentRef)
		if err != nil {
			return nil, err
		}
		if !amountMatches(p.Amount, st.Amount) {
			logger.CtxError(ctx, "Webhook amount mismatch",
				"payment_ref", st.PaymentRef,
				"expected", p.Amount.StringFixed(2),
				"received", st.Amount.StringFixed(2),
			)
			return nil, apperrors.ErrInvalidPaymentAmount
		}
	}

	return s.ConfirmPayment(ctx, st.PaymentRef, models.PaymentSourceWebhook, Outcome{
		Status: models.PaymentStatus(st.Status),
		PaidAt: st.PaidAt,
	})
}

func (s *paymentService) HandleCallback(ctx context.Context, params url.Values) (*dto.PaymentResult, error) {
	res, err := s.provider.ValidateCallback(params)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrMissingCallbackParams):
			return nil, apperrors.ErrMissingCallbackParams
		case errors.Is(err, payment.ErrCallbackExpired):
			return nil, apperrors.ErrCallbackExpired
		default:
			metrics.RecordSignatureFailure("redirect")
			logger.CtxWarn(ctx, "Callback signature rejected", "transaction_id", params.Get("transaction_id"))
			return nil, apperrors.ErrInvalidPaymentSignature
		}
	}

	p, err := s.findPayment(ctx, res.TransactionID)
	if err != nil {
		return nil, err
	}
	if !amountMatches(p.Amount, res.Amount) {
		logger.CtxError(ctx, "Callback amount mismatch",
			"payment_ref", res.TransactionID,
			"expected", p.Amount.StringFixed(2),
			"received", res.Amount.StringFixed(2),
		)
		return nil, apperrors.ErrInvalidPaymentAmount
	}

	paidAt := res.SuccessTime
	return s.ConfirmPayment(ctx, p.LocalRef, models.PaymentSourceRedirect, Outcome{
		Status: models.PaymentStatusCompleted,
		PaidAt: &paidAt,
	})
}

func (s *paymentService) VerifyPayment(ctx context.Context, userID, paymentRef string) (*dto.PaymentResult, error) {
	p, err := s.findOwnedPayment(ctx, userID, paymentRef)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() || p.ProviderRef() == "" {
		return &dto.PaymentResult{Status: p.Status, PaymentID: p.ID}, nil
	}

	st := s.provider.VerifyPayment(ctx, p.ProviderRef())
	metrics.RecordProviderVerification(s.provider.Name(), string(st.Status))
	if st.Status == payment.StatusPending {
		return &dto.PaymentResult{Status: p.Status, PaymentID: p.ID}, nil
	}

	return s.ConfirmPayment(ctx, p.LocalRef, models.PaymentSourcePoll, Outcome{
		Status: models.PaymentStatus(st.Status),
		PaidAt: st.PaidAt,
	})
}

func (s *paymentService) VerifyVideoPurchase(ctx context.Context, userID, movieID, paymentRef string) (*dto.PurchaseStatus, error) {
	status := models.PaymentStatus("")
	if paymentRef != "" {
		p, err := s.findOwnedPayment(ctx, userID, paymentRef)
		if err != nil {
			return nil, err
		}
		if p.Kind != models.PaymentKindVideo || p.MovieID == nil || *p.MovieID != movieID {
			return nil, apperrors.NewBadRequestError("Payment does not belong to this movie")
		}
		res, err := s.VerifyPayment(ctx, userID, paymentRef)
		if err != nil {
			return nil, err
		}
		status = res.Status
	}

	purchased, err := s.HasPurchased(ctx, userID, movieID)
	if err != nil {
		return nil, err
	}
	if purchased && status == "" {
		status = models.PaymentStatusCompleted
	}
	return &dto.PurchaseStatus{IsPurchased: purchased, Status: status}, nil
}

func (s *paymentService) HasPurchased(ctx context.Context, userID, movieID string) (bool, error) {
	purchased, err := s.store.Movies().HasPurchase(ctx, userID, movieID)
	if err != nil {
		return false, apperrors.InternalError(err)
	}
	return purchased, nil
}

// =======================
// 4. Чтение
// =======================

func (s *paymentService) GetPaymentHistory(ctx context.Context, userID string) (*dto.PaymentHistory, error) {
	payments, err := s.store.Payments().FindByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	items := make([]dto.PaymentHistoryItem, 0, len(payments))
	for _, p := range payments {
		items = append(items, dto.NewPaymentHistoryItem(p))
	}
	return &dto.PaymentHistory{Payments: items, Total: len(items)}, nil
}

func (s *paymentService) GetSubscriptionStatus(ctx context.Context, userID string) (*dto.SubscriptionStatus, error) {
	sub, err := s.store.Subscriptions().FindUserSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return &dto.SubscriptionStatus{}, nil
		}
		return nil, apperrors.InternalError(err)
	}
	return &dto.SubscriptionStatus{
		IsActive:     sub.IsActive(s.now()),
		Subscription: dto.NewSubscriptionInfo(sub),
	}, nil
}

func (s *paymentService) GetPaymentQR(ctx context.Context, userID, paymentRef string, size int) ([]byte, error) {
	p, err := s.findOwnedPayment(ctx, userID, paymentRef)
	if err != nil {
		return nil, err
	}
	if p.KHQR == "" {
		return nil, apperrors.NewNotFoundError("payment", "QR code is not available for this payment")
	}
	png, err := payment.RenderQRPNG(p.KHQR, size)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return png, nil
}

func (s *paymentService) MockCheckout(ctx context.Context, params url.Values) (string, error) {
	mock, ok := s.provider.(*payment.MockProvider)
	if !ok {
		return "", apperrors.NewNotFoundError("payment", "Mock checkout is disabled")
	}

	txID := params.Get("transaction_id")
	amount := params.Get("amount")
	if txID == "" || amount == "" || params.Get("hash") == "" {
		return "", apperrors.ErrMissingCallbackParams
	}
	expected := payment.CheckoutHash(mock.HashSecret(), amount, txID)
	if !hmac.Equal([]byte(expected), []byte(params.Get("hash"))) {
		return "", apperrors.ErrInvalidPaymentSignature
	}

	p, err := s.findPayment(ctx, txID)
	if err != nil {
		return "", err
	}

	logger.CtxInfo(ctx, "Mock checkout completed", "payment_ref", p.LocalRef)
	return s.callbackURL() + "?" + mock.SignedCallback(p.LocalRef, p.Amount).Encode(), nil
}

// =======================
// helpers
// =======================

func (s *paymentService) findPayment(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	p, err := s.store.Payments().FindByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			logger.CtxError(ctx, "Payment reference not found", "payment_ref", ref)
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	return p, nil
}

func (s *paymentService) findOwnedPayment(ctx context.Context, userID, ref string) (*models.PaymentTransaction, error) {
	p, err := s.findPayment(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, apperrors.ErrPaymentAccessDenied
	}
	return p, nil
}

func (s *paymentService) callbackURL() string {
	return strings.TrimRight(s.settings.PublicBaseURL, "/") + "/api/payments/callback"
}

func (s *paymentService) sendReceipt(ctx context.Context, p *models.PaymentTransaction, paidAt *time.Time) {
	if s.mailer == nil {
		return
	}
	user, err := s.store.Users().FindByID(ctx, p.UserID)
	if err != nil || user.Email == "" {
		logger.CtxDebug(ctx, "Receipt skipped: no e-mail for user", "error", err)
		return
	}

	receipt := email.Receipt{
		To:         user.Email,
		Name:       user.Name,
		PaymentRef: p.LocalRef,
		Kind:       string(p.Kind),
		Amount:     p.Amount,
		Currency:   p.Currency,
		PaidAt:     s.now(),
	}
	if paidAt != nil {
		receipt.PaidAt = *paidAt
	}

	switch p.Kind {
	case models.PaymentKindVideo:
		receipt.Item = "movie"
		if p.MovieID != nil {
			if movie, err := s.store.Movies().FindByID(ctx, *p.MovieID); err == nil {
				receipt.Item = movie.Title
			}
		}
	default:
		receipt.Item = "subscription"
		if sub, err := s.store.Subscriptions().FindUserSubscription(ctx, p.UserID); err == nil {
			receipt.ValidUntil = sub.EndDate
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()
	if err := s.mailer.SendReceipt(sendCtx, receipt); err != nil {
		logger.CtxWithError(ctx, "Failed to send payment receipt", err)
	}
}

func amountMatches(expected, received decimal.Decimal) bool {
	return expected.Sub(received).Abs().LessThanOrEqual(amountTolerance)
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return "USD"
	}
	return currency
}
