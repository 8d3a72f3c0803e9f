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

// ProgressSyncService reconciles per-activity completion for every synced
// member of every active course. The user set comes from the course's
// remote enrollment list, not a scan of the whole account table.
type ProgressSyncService interface {
	SyncProgress(ctx context.Context) (dto.ProgressSyncResult, error)
}

type progressSyncService struct {
	api      MoodleAPI
	courses  repository.CourseRepository
	accounts repository.AccountRepository
	progress repository.ActivityProgressRepository
	logger   zerolog.Logger
	now      func() time.Time
}

// NewProgressSyncService builds the activity completion sync pipeline.
func NewProgressSyncService(api MoodleAPI, courses repository.CourseRepository, accounts repository.AccountRepository, progress repository.ActivityProgressRepository, logger zerolog.Logger) ProgressSyncService {
	return &progressSyncService{
		api:      api,
		courses:  courses,
		accounts: accounts,
		progress: progress,
		logger:   logger.With().Str("component", "progress_sync_service").Logger(),
		now:      time.Now,
	}
}

func (s *progressSyncService) SyncProgress(ctx context.Context) (dto.ProgressSyncResult, error) {
	courses, err := s.courses.ListActive(ctx)
	if err != nil {
		return dto.ProgressSyncResult{}, err
	}

	result := dto.ProgressSyncResult{}
	for _, course := range courses {
		s.syncCourse(ctx, course, &result)
	}

	s.logger.Info().
		Int("courses_processed", result.CoursesProcessed).
		Int("courses_completion_disabled", result.CoursesShortCircuit).
		Int("records_synced", result.RecordsSynced).
		Int("skipped", result.Skipped).
		Msg("progress sync completed")
	return result, nil
}

func (s *progressSyncService) syncCourse(ctx context.Context, course models.Course, result *dto.ProgressSyncResult) {
	enrolled, err := s.api.GetEnrolledUsers(ctx, course.MoodleID)
	if err != nil {
		s.logger.Error().Err(err).Int64("moodle_course_id", course.MoodleID).
			Msg("enrolled users fetch failed, continuing with next course")
		return
	}
	result.CoursesProcessed++

	for _, user := range enrolled {
		account, err := s.accounts.GetByMoodleID(ctx, user.ID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error().Err(err).Int64("moodle_user_id", user.ID).Msg("account lookup failed, skipping user")
			}
			continue
		}

		statuses, err := s.api.GetCompletionStatus(ctx, course.MoodleID, user.ID)
		if err != nil {
			if moodle.IsRemoteException(err, moodle.CompletionDisabledCodes...) {
				// Completion tracking is off for the whole course;
				// no per-user call can succeed, move on.
				s.logger.Warn().Int64("moodle_course_id", course.MoodleID).
					Msg("completion not enabled for course, skipping remaining users")
				result.CoursesShortCircuit++
				return
			}
			s.logger.Error().Err(err).
				Int64("moodle_course_id", course.MoodleID).
				Int64("moodle_user_id", user.ID).
				Msg("completion fetch failed, continuing with next user")
			continue
		}

		for _, status := range statuses {
			if status.CourseModuleID == nil {
				s.logger.Warn().Str("activity", status.ActivityName).Msg("completion entry without cmid, skipping")
				result.Skipped++
				continue
			}
			if err := s.upsertProgress(ctx, account, course, status); err != nil {
				s.logger.Error().Err(err).Int64("cmid", *status.CourseModuleID).Msg("progress upsert failed, skipping")
				result.Skipped++
				continue
			}
			result.RecordsSynced++
		}
	}
}

func (s *progressSyncService) upsertProgress(ctx context.Context, account models.Account, course models.Course, status moodle.RemoteCompletionStatus) error {
	stamp := s.now()
	state := models.CompletionState(status.CompletionState)
	if !state.Valid() {
		state = models.ActivityNotCompleted
	}

	progress, err := s.progress.GetByNaturalKey(ctx, account.ID, course.ID, *status.CourseModuleID)
	if err == nil {
		progress.ActivityName = status.ActivityName
		progress.State = state
		progress.ModifiedAt = moodle.TimeFromUnix(status.TimeModified)
		progress.LastSyncedAt = &stamp
		return s.progress.Update(ctx, &progress)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.progress.Create(ctx, &models.ActivityProgress{
		AccountID:      account.ID,
		CourseID:       course.ID,
		CourseModuleID: *status.CourseModuleID,
		ActivityName:   status.ActivityName,
		State:          state,
		ModifiedAt:     moodle.TimeFromUnix(status.TimeModified),
		LastSyncedAt:   &stamp,
	})
}
