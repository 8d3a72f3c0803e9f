package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/dto"
	"github.com/digilearn/moodle-sync-api/internal/models"
	"github.com/digilearn/moodle-sync-api/internal/repository"
	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

// DefaultTeacherRoleIDs covers Moodle's editing and non-editing teacher
// roles.
var DefaultTeacherRoleIDs = []int64{3, 4}

// TeacherSyncService scans every active course's enrolled users, filters
// them to the configured teacher roles and reconciles course teacher rows.
// Teachers not yet known locally are auto-created through the identity
// resolver.
type TeacherSyncService interface {
	SyncTeachers(ctx context.Context) (dto.TeacherSyncResult, error)
}

type teacherSyncService struct {
	api      MoodleAPI
	courses  repository.CourseRepository
	teachers repository.CourseTeacherRepository
	resolver IdentityResolver
	roleIDs  []int64
	logger   zerolog.Logger
	now      func() time.Time
}

// NewTeacherSyncService builds the teacher sync pipeline. roleIDs defaults
// to DefaultTeacherRoleIDs when empty.
func NewTeacherSyncService(api MoodleAPI, courses repository.CourseRepository, teachers repository.CourseTeacherRepository, resolver IdentityResolver, roleIDs []int64, logger zerolog.Logger) TeacherSyncService {
	if len(roleIDs) == 0 {
		roleIDs = DefaultTeacherRoleIDs
	}
	return &teacherSyncService{
		api:      api,
		courses:  courses,
		teachers: teachers,
		resolver: resolver,
		roleIDs:  roleIDs,
		logger:   logger.With().Str("component", "teacher_sync_service").Logger(),
		now:      time.Now,
	}
}

func (s *teacherSyncService) SyncTeachers(ctx context.Context) (dto.TeacherSyncResult, error) {
	courses, err := s.courses.ListActive(ctx)
	if err != nil {
		return dto.TeacherSyncResult{}, err
	}

	result := dto.TeacherSyncResult{}
	for _, course := range courses {
		enrolled, err := s.api.GetEnrolledUsers(ctx, course.MoodleID)
		if err != nil {
			s.logger.Error().Err(err).Int64("moodle_course_id", course.MoodleID).
				Msg("enrolled users fetch failed, continuing with next course")
			continue
		}
		result.CoursesProcessed++

		for _, user := range enrolled {
			if !user.HasAnyRole(s.roleIDs) {
				continue
			}
			if err := s.syncTeacher(ctx, course, user); err != nil {
				// Each teacher/course pair is independent.
				s.logger.Error().Err(err).
					Int64("moodle_user_id", user.ID).
					Int64("moodle_course_id", course.MoodleID).
					Msg("teacher sync failed, skipping")
				result.Skipped++
				continue
			}
			result.TeachersSynced++
		}
	}

	s.logger.Info().
		Int("courses_processed", result.CoursesProcessed).
		Int("teachers_synced", result.TeachersSynced).
		Int("skipped", result.Skipped).
		Msg("teacher sync completed")
	return result, nil
}

func (s *teacherSyncService) syncTeacher(ctx context.Context, course models.Course, user moodle.RemoteEnrolledUser) error {
	_, account, err := s.resolver.ResolvePerson(ctx, PersonRef{
		MoodleID:    user.ID,
		Email:       user.Email,
		DisplayName: user.FullName,
		Username:    user.Username,
	})
	if err != nil {
		return err
	}

	stamp := s.now()
	teacher, err := s.teachers.GetByAccountAndCourse(ctx, account.ID, course.ID)
	if err == nil {
		teacher.FullName = user.FullName
		teacher.Email = user.Email
		teacher.LastSyncedAt = &stamp
		return s.teachers.Update(ctx, &teacher)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.teachers.Create(ctx, &models.CourseTeacher{
		AccountID:    account.ID,
		CourseID:     course.ID,
		FullName:     user.FullName,
		Email:        user.Email,
		LastSyncedAt: &stamp,
	})
}
