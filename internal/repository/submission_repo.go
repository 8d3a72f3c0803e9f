package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

// SubmissionRepository provides access to synced submission records.
type SubmissionRepository interface {
	GetByAssignmentAndAccount(ctx context.Context, assignmentID, accountID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	CreateBatch(ctx context.Context, submissions []*models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByAssignmentAndAccount(ctx context.Context, assignmentID, accountID uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND account_id = ?", assignmentID, accountID).
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) CreateBatch(ctx context.Context, submissions []*models.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(submissions).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}
