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

// AssignmentSyncService reconciles assignments per active course and their
// submissions in one batched remote call per course. Submissions whose
// remote userid has no matching account are skipped: this pipeline depends
// on user sync and never auto-creates accounts.
type AssignmentSyncService interface {
	SyncAssignments(ctx context.Context) (dto.AssignmentSyncResult, error)
}

type assignmentSyncService struct {
	api         MoodleAPI
	courses     repository.CourseRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	accounts    repository.AccountRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentSyncService builds the assignment/submission sync pipeline.
func NewAssignmentSyncService(api MoodleAPI, courses repository.CourseRepository, assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, accounts repository.AccountRepository, logger zerolog.Logger) AssignmentSyncService {
	return &assignmentSyncService{
		api:         api,
		courses:     courses,
		assignments: assignments,
		submissions: submissions,
		accounts:    accounts,
		logger:      logger.With().Str("component", "assignment_sync_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentSyncService) SyncAssignments(ctx context.Context) (dto.AssignmentSyncResult, error) {
	courses, err := s.courses.ListActive(ctx)
	if err != nil {
		return dto.AssignmentSyncResult{}, err
	}

	result := dto.AssignmentSyncResult{}
	for _, course := range courses {
		if err := s.syncCourse(ctx, course, &result); err != nil {
			// One course's failure never aborts the others.
			s.logger.Error().Err(err).Int64("moodle_course_id", course.MoodleID).
				Msg("assignment sync failed for course, continuing")
			continue
		}
		result.CoursesProcessed++
	}

	s.logger.Info().
		Int("courses_processed", result.CoursesProcessed).
		Int("assignments_processed", result.AssignmentsProcessed).
		Int("submissions_processed", result.SubmissionsProcessed).
		Int("submissions_skipped", result.SubmissionsSkipped).
		Msg("assignment sync completed")
	return result, nil
}

func (s *assignmentSyncService) syncCourse(ctx context.Context, course models.Course, result *dto.AssignmentSyncResult) error {
	blocks, err := s.api.GetAssignments(ctx, course.MoodleID)
	if err != nil {
		return err
	}

	stamp := s.now()
	processed := make(map[int64]*models.Assignment)
	var newAssignments []*models.Assignment

	for _, block := range blocks {
		for _, ra := range block.Assignments {
			if ra.ID <= 0 {
				s.logger.Warn().Str("name", ra.Name).Msg("remote assignment without id, skipping")
				continue
			}

			assignment, err := s.assignments.GetByMoodleID(ctx, ra.ID)
			if err == nil {
				assignment.Name = ra.Name
				assignment.DueDate = moodle.TimeFromUnix(ra.DueDate)
				assignment.CourseID = course.ID
				assignment.LastSyncedAt = &stamp
				if err := s.assignments.Update(ctx, &assignment); err != nil {
					s.logger.Error().Err(err).Int64("moodle_id", ra.ID).Msg("assignment update failed, skipping")
					continue
				}
				local := assignment
				processed[ra.ID] = &local
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error().Err(err).Int64("moodle_id", ra.ID).Msg("assignment lookup failed, skipping")
				continue
			}

			fresh := &models.Assignment{
				MoodleID:     ra.ID,
				Name:         ra.Name,
				DueDate:      moodle.TimeFromUnix(ra.DueDate),
				CourseID:     course.ID,
				LastSyncedAt: &stamp,
			}
			newAssignments = append(newAssignments, fresh)
			processed[ra.ID] = fresh
		}
	}

	applyBatch(ctx, s.logger, "assignment", newAssignments, s.assignments.CreateBatch, s.assignments.Create)

	assignmentIDs := make([]int64, 0, len(processed))
	for moodleID, assignment := range processed {
		if assignment.ID == 0 {
			delete(processed, moodleID)
			continue
		}
		result.AssignmentsProcessed++
		assignmentIDs = append(assignmentIDs, moodleID)
	}
	if len(assignmentIDs) == 0 {
		return nil
	}

	return s.syncSubmissions(ctx, processed, assignmentIDs, result)
}

func (s *assignmentSyncService) syncSubmissions(ctx context.Context, assignments map[int64]*models.Assignment, assignmentIDs []int64, result *dto.AssignmentSyncResult) error {
	blocks, err := s.api.GetSubmissions(ctx, assignmentIDs)
	if err != nil {
		return err
	}

	stamp := s.now()
	var newSubmissions []*models.Submission

	for _, block := range blocks {
		assignment, ok := assignments[block.AssignmentID]
		if !ok {
			s.logger.Warn().Int64("assignmentid", block.AssignmentID).Msg("submissions for unknown assignment, skipping block")
			continue
		}

		for _, rs := range block.Submissions {
			if rs.Status == "" {
				s.logger.Warn().Int64("userid", rs.UserID).Int64("assignmentid", block.AssignmentID).
					Msg("submission without status, skipping")
				result.SubmissionsSkipped++
				continue
			}

			account, err := s.accounts.GetByMoodleID(ctx, rs.UserID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					s.logger.Warn().Int64("userid", rs.UserID).Int64("assignmentid", block.AssignmentID).
						Msg("no account for submission userid, skipping")
				} else {
					s.logger.Error().Err(err).Int64("userid", rs.UserID).Msg("account lookup failed, skipping submission")
				}
				result.SubmissionsSkipped++
				continue
			}

			submission, err := s.submissions.GetByAssignmentAndAccount(ctx, assignment.ID, account.ID)
			if err == nil {
				submission.Status = rs.Status
				submission.Grade = rs.Grade()
				submission.ModifiedAt = moodle.TimeFromUnix(rs.TimeModified)
				submission.LastSyncedAt = &stamp
				if err := s.submissions.Update(ctx, &submission); err != nil {
					s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("submission update failed, skipping")
					result.SubmissionsSkipped++
					continue
				}
				result.SubmissionsProcessed++
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error().Err(err).Int64("userid", rs.UserID).Msg("submission lookup failed, skipping")
				result.SubmissionsSkipped++
				continue
			}

			newSubmissions = append(newSubmissions, &models.Submission{
				AssignmentID: assignment.ID,
				AccountID:    account.ID,
				Status:       rs.Status,
				Grade:        rs.Grade(),
				ModifiedAt:   moodle.TimeFromUnix(rs.TimeModified),
				LastSyncedAt: &stamp,
			})
		}
	}

	outcome := applyBatch(ctx, s.logger, "submission", newSubmissions, s.submissions.CreateBatch, s.submissions.Create)
	result.SubmissionsProcessed += outcome.Applied
	result.SubmissionsSkipped += outcome.Failed
	return nil
}
