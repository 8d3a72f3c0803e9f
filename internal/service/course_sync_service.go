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
)

// CourseSyncService reconciles the remote course list into local courses.
// It is the bootstrap pipeline: every other pipeline resolves courses by
// remote id and skips unknown ones, so this must run first.
type CourseSyncService interface {
	SyncCourses(ctx context.Context) (dto.CourseSyncResult, error)
}

type courseSyncService struct {
	api     MoodleAPI
	courses repository.CourseRepository
	logger  zerolog.Logger
	now     func() time.Time
}

// NewCourseSyncService builds the course sync pipeline.
func NewCourseSyncService(api MoodleAPI, courses repository.CourseRepository, logger zerolog.Logger) CourseSyncService {
	return &courseSyncService{
		api:     api,
		courses: courses,
		logger:  logger.With().Str("component", "course_sync_service").Logger(),
		now:     time.Now,
	}
}

func (s *courseSyncService) SyncCourses(ctx context.Context) (dto.CourseSyncResult, error) {
	remote, err := s.api.GetCourses(ctx)
	if err != nil {
		return dto.CourseSyncResult{}, err
	}

	result := dto.CourseSyncResult{}
	for _, rc := range remote {
		if rc.ID <= 0 {
			s.logger.Warn().Str("fullname", rc.FullName).Msg("remote course without id, skipping")
			result.Skipped++
			continue
		}

		if err := s.upsertCourse(ctx, rc.ID, rc.FullName, rc.ShortName, &result); err != nil {
			// One broken course must not abort the listing.
			s.logger.Error().Err(err).Int64("moodle_id", rc.ID).Msg("course upsert failed, skipping")
			result.Skipped++
			continue
		}
		result.Synced++
	}

	s.logger.Info().
		Int("synced", result.Synced).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("course sync completed")
	return result, nil
}

func (s *courseSyncService) upsertCourse(ctx context.Context, moodleID int64, name, shortName string, result *dto.CourseSyncResult) error {
	stamp := s.now()

	course, err := s.courses.GetByMoodleID(ctx, moodleID)
	if err == nil {
		course.Name = name
		course.ShortName = shortName
		course.LastSyncedAt = &stamp
		if err := s.courses.Update(ctx, &course); err != nil {
			return err
		}
		result.Updated++
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	course = models.Course{
		Name:         name,
		ShortName:    shortName,
		MoodleID:     moodleID,
		Active:       true,
		LastSyncedAt: &stamp,
	}
	if err := s.courses.Create(ctx, &course); err != nil {
		return err
	}
	result.Created++
	return nil
}
