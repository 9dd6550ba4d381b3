package repositories

import (
	"context"
	"errors"

	"moviestream_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMovieNotFound = errors.New("movie not found")
)

type MovieRepository interface {
	Create(ctx context.Context, movie *models.Movie) error
	FindByID(ctx context.Context, id string) (*models.Movie, error)

	// Purchases
	HasPurchase(ctx context.Context, userID, movieID string) (bool, error)
	CreatePurchase(ctx context.Context, purchase *models.VideoPurchase) error

	// Saved list ("моя библиотека")
	IsSaved(ctx context.Context, userID, movieID string) (bool, error)
	AddSaved(ctx context.Context, userID, movieID string) error
}

type MovieRepositoryImpl struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) MovieRepository {
	return &MovieRepositoryImpl{db: db}
}

func (r *MovieRepositoryImpl) Create(ctx context.Context, movie *models.Movie) error {
	return r.db.WithContext(ctx).Create(movie).Error
}

func (r *MovieRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Movie, error) {
	var movie models.Movie
	err := r.db.WithContext(ctx).First(&movie, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	return &movie, nil
}

func (r *MovieRepositoryImpl) HasPurchase(ctx context.Context, userID, movieID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.VideoPurchase{}).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Count(&count).Error
	return count > 0, err
}

func (r *MovieRepositoryImpl) CreatePurchase(ctx context.Context, purchase *models.VideoPurchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *MovieRepositoryImpl) IsSaved(ctx context.Context, userID, movieID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SavedMovie{}).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Count(&count).Error
	return count > 0, err
}

// AddSaved идемпотентен: повторное добавление не создает дубликат.
func (r *MovieRepositoryImpl) AddSaved(ctx context.Context, userID, movieID string) error {
	saved := models.SavedMovie{UserID: userID, MovieID: movieID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&saved).Error
}
