package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

// GradeItemRepository provides access to synced grade report lines.
type GradeItemRepository interface {
	GetByNaturalKey(ctx context.Context, moodleUserID, enrollmentID uint, moodleItemID int64) (models.GradeItem, error)
	Create(ctx context.Context, item *models.GradeItem) error
	CreateBatch(ctx context.Context, items []*models.GradeItem) error
	Update(ctx context.Context, item *models.GradeItem) error
}

type gradeItemRepository struct {
	db *gorm.DB
}

// NewGradeItemRepository constructs a grade item repository.
func NewGradeItemRepository(db *gorm.DB) GradeItemRepository {
	return &gradeItemRepository{db: db}
}

func (r *gradeItemRepository) GetByNaturalKey(ctx context.Context, moodleUserID, enrollmentID uint, moodleItemID int64) (models.GradeItem, error) {
	var item models.GradeItem
	err := r.db.WithContext(ctx).
		Where("moodle_user_id = ? AND enrollment_id = ? AND moodle_item_id = ?", moodleUserID, enrollmentID, moodleItemID).
		First(&item).Error
	if err != nil {
		return models.GradeItem{}, err
	}
	return item, nil
}

func (r *gradeItemRepository) Create(ctx context.Context, item *models.GradeItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *gradeItemRepository) CreateBatch(ctx context.Context, items []*models.GradeItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(items).Error
}

func (r *gradeItemRepository) Update(ctx context.Context, item *models.GradeItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}
