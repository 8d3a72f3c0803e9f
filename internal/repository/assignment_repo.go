package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

// AssignmentRepository provides access to synced assignment records.
type AssignmentRepository interface {
	GetByMoodleID(ctx context.Context, moodleID int64) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	CreateBatch(ctx context.Context, assignments []*models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository constructs an assignment repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByMoodleID(ctx context.Context, moodleID int64) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).Where("moodle_id = ?", moodleID).First(&assignment).Error; err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) CreateBatch(ctx context.Context, assignments []*models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(assignments).Error
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}
