package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

// ActivityProgressRepository provides access to activity completion records.
type ActivityProgressRepository interface {
	GetByNaturalKey(ctx context.Context, accountID, courseID uint, courseModuleID int64) (models.ActivityProgress, error)
	Create(ctx context.Context, progress *models.ActivityProgress) error
	Update(ctx context.Context, progress *models.ActivityProgress) error
}

type activityProgressRepository struct {
	db *gorm.DB
}

// NewActivityProgressRepository constructs an activity progress repository.
func NewActivityProgressRepository(db *gorm.DB) ActivityProgressRepository {
	return &activityProgressRepository{db: db}
}

func (r *activityProgressRepository) GetByNaturalKey(ctx context.Context, accountID, courseID uint, courseModuleID int64) (models.ActivityProgress, error) {
	var progress models.ActivityProgress
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND course_id = ? AND course_module_id = ?", accountID, courseID, courseModuleID).
		First(&progress).Error
	if err != nil {
		return models.ActivityProgress{}, err
	}
	return progress, nil
}

func (r *activityProgressRepository) Create(ctx context.Context, progress *models.ActivityProgress) error {
	return r.db.WithContext(ctx).Create(progress).Error
}

func (r *activityProgressRepository) Update(ctx context.Context, progress *models.ActivityProgress) error {
	return r.db.WithContext(ctx).Save(progress).Error
}
