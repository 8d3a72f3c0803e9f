package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

// MoodleUserRepository provides access to shadow user records.
type MoodleUserRepository interface {
	GetByMoodleID(ctx context.Context, moodleID int64) (models.MoodleUser, error)
	ListByMoodleIDs(ctx context.Context, moodleIDs []int64) ([]models.MoodleUser, error)
	Create(ctx context.Context, user *models.MoodleUser) error
	CreateBatch(ctx context.Context, users []*models.MoodleUser) error
	Update(ctx context.Context, user *models.MoodleUser) error
}

type moodleUserRepository struct {
	db *gorm.DB
}

// NewMoodleUserRepository constructs a shadow user repository.
func NewMoodleUserRepository(db *gorm.DB) MoodleUserRepository {
	return &moodleUserRepository{db: db}
}

func (r *moodleUserRepository) GetByMoodleID(ctx context.Context, moodleID int64) (models.MoodleUser, error) {
	var user models.MoodleUser
	if err := r.db.WithContext(ctx).Where("moodle_id = ?", moodleID).First(&user).Error; err != nil {
		return models.MoodleUser{}, err
	}
	return user, nil
}

func (r *moodleUserRepository) ListByMoodleIDs(ctx context.Context, moodleIDs []int64) ([]models.MoodleUser, error) {
	if len(moodleIDs) == 0 {
		return nil, nil
	}
	var users []models.MoodleUser
	if err := r.db.WithContext(ctx).Where("moodle_id IN ?", moodleIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *moodleUserRepository) Create(ctx context.Context, user *models.MoodleUser) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *moodleUserRepository) CreateBatch(ctx context.Context, users []*models.MoodleUser) error {
	if len(users) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(users).Error
}

func (r *moodleUserRepository) Update(ctx context.Context, user *models.MoodleUser) error {
	return r.db.WithContext(ctx).Save(user).Error
}
