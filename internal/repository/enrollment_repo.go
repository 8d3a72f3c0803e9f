package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

// EnrollmentRepository provides access to user-course enrollment records.
type EnrollmentRepository interface {
	GetByCourseAndUser(ctx context.Context, courseID, moodleUserID uint) (models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	CreateBatch(ctx context.Context, enrollments []*models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository constructs an enrollment repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) GetByCourseAndUser(ctx context.Context, courseID, moodleUserID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND moodle_user_id = ?", courseID, moodleUserID).
		First(&enrollment).Error
	if err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

func (r *enrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	return r.db.WithContext(ctx).Create(enrollment).Error
}

func (r *enrollmentRepository) CreateBatch(ctx context.Context, enrollments []*models.Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(enrollments).Error
}

func (r *enrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	return r.db.WithContext(ctx).Save(enrollment).Error
}
