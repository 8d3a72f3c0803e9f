package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

// CourseTeacherRepository provides access to course teacher assignments.
type CourseTeacherRepository interface {
	GetByAccountAndCourse(ctx context.Context, accountID, courseID uint) (models.CourseTeacher, error)
	Create(ctx context.Context, teacher *models.CourseTeacher) error
	Update(ctx context.Context, teacher *models.CourseTeacher) error
}

type courseTeacherRepository struct {
	db *gorm.DB
}

// NewCourseTeacherRepository constructs a course teacher repository.
func NewCourseTeacherRepository(db *gorm.DB) CourseTeacherRepository {
	return &courseTeacherRepository{db: db}
}

func (r *courseTeacherRepository) GetByAccountAndCourse(ctx context.Context, accountID, courseID uint) (models.CourseTeacher, error) {
	var teacher models.CourseTeacher
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND course_id = ?", accountID, courseID).
		First(&teacher).Error
	if err != nil {
		return models.CourseTeacher{}, err
	}
	return teacher, nil
}

func (r *courseTeacherRepository) Create(ctx context.Context, teacher *models.CourseTeacher) error {
	return r.db.WithContext(ctx).Create(teacher).Error
}

func (r *courseTeacherRepository) Update(ctx context.Context, teacher *models.CourseTeacher) error {
	return r.db.WithContext(ctx).Save(teacher).Error
}
