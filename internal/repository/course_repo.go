package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

// CourseRepository provides access to synced course records.
type CourseRepository interface {
	GetByMoodleID(ctx context.Context, moodleID int64) (models.Course, error)
	ListActive(ctx context.Context) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByMoodleID(ctx context.Context, moodleID int64) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Where("moodle_id = ?", moodleID).First(&course).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) ListActive(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Save(course).Error
}
