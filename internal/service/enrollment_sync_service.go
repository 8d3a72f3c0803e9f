package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/dto"
	"github.com/digilearn/moodle-sync-api/internal/models"
	"github.com/digilearn/moodle-sync-api/internal/repository"
	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

// ErrAccountNotFound indicates the requested account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// ErrAccountNotLinked indicates the account has no remote user id and
// cannot be synced.
var ErrAccountNotLinked = errors.New("account has no moodle id")

// EnrollmentSyncService pulls an account's enrolled courses and the grade
// report of each, reconciling both into local enrollments and grade items.
// Grades attach only to courses course sync has already created; unknown
// courses are skipped, never auto-created.
type EnrollmentSyncService interface {
	SyncAccount(ctx context.Context, accountID uint) (dto.EnrollmentSyncResult, error)
	SyncFleet(ctx context.Context) (dto.FleetSyncResult, error)
}

type enrollmentSyncService struct {
	api         MoodleAPI
	accounts    repository.AccountRepository
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	gradeItems  repository.GradeItemRepository
	resolver    IdentityResolver
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewEnrollmentSyncService builds the enrollment/grade sync pipeline.
func NewEnrollmentSyncService(api MoodleAPI, accounts repository.AccountRepository, courses repository.CourseRepository, enrollments repository.EnrollmentRepository, gradeItems repository.GradeItemRepository, resolver IdentityResolver, logger zerolog.Logger) EnrollmentSyncService {
	return &enrollmentSyncService{
		api:         api,
		accounts:    accounts,
		courses:     courses,
		enrollments: enrollments,
		gradeItems:  gradeItems,
		resolver:    resolver,
		logger:      logger.With().Str("component", "enrollment_sync_service").Logger(),
		tracer:      otel.Tracer("github.com/digilearn/moodle-sync-api/internal/service/enrollment"),
		now:         time.Now,
	}
}

// resolvedEnrollment pairs a reconciled enrollment with the remote course
// id its grades are fetched under.
type resolvedEnrollment struct {
	enrollment     *models.Enrollment
	moodleCourseID int64
	created        bool
}

func (s *enrollmentSyncService) SyncAccount(ctx context.Context, accountID uint) (dto.EnrollmentSyncResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentSyncResult{}, ErrAccountNotFound
		}
		return dto.EnrollmentSyncResult{}, err
	}
	if !account.HasMoodleID() {
		return dto.EnrollmentSyncResult{}, ErrAccountNotLinked
	}
	return s.syncAccount(ctx, account)
}

func (s *enrollmentSyncService) SyncFleet(ctx context.Context) (dto.FleetSyncResult, error) {
	spanCtx, span := s.tracer.Start(ctx, "sync.enrollments.fleet")
	defer span.End()

	accounts, err := s.accounts.ListWithMoodleID(spanCtx)
	if err != nil {
		return dto.FleetSyncResult{}, err
	}

	result := dto.FleetSyncResult{Errors: map[uint]string{}}
	for _, account := range accounts {
		counts, err := s.syncAccount(spanCtx, account)
		if err != nil {
			// One account's failure never aborts the fleet loop.
			s.logger.Error().Err(err).Uint("account_id", account.ID).Msg("enrollment sync failed for account")
			result.Errors[account.ID] = err.Error()
			continue
		}
		result.AccountsProcessed++
		result.Totals.Add(counts)
	}

	span.SetAttributes(
		attribute.Int("sync.accounts_processed", result.AccountsProcessed),
		attribute.Int("sync.accounts_failed", len(result.Errors)),
	)
	s.logger.Info().
		Int("accounts_processed", result.AccountsProcessed).
		Int("accounts_failed", len(result.Errors)).
		Int("enrollments_created", result.Totals.EnrollmentsCreated).
		Int("grades_created", result.Totals.GradesCreated).
		Msg("fleet enrollment sync completed")
	return result, nil
}

func (s *enrollmentSyncService) syncAccount(ctx context.Context, account models.Account) (dto.EnrollmentSyncResult, error) {
	result := dto.EnrollmentSyncResult{}

	shadow, err := s.resolver.EnsureShadowForAccount(ctx, account)
	if err != nil {
		return result, err
	}

	remoteCourses, err := s.api.GetUserCourses(ctx, *account.MoodleID)
	if err != nil {
		return result, err
	}
	if len(remoteCourses) == 0 {
		return result, nil
	}

	resolved, newEnrollments := s.reconcileEnrollments(ctx, shadow, remoteCourses, &result)

	outcome := applyBatch(ctx, s.logger, "enrollment", newEnrollments, s.enrollments.CreateBatch, s.enrollments.Create)
	result.EnrollmentsCreated = outcome.Applied

	var newGrades []*models.GradeItem
	for _, re := range resolved {
		if re.created && re.enrollment.ID == 0 {
			// Creation fell through even in the per-record retry;
			// grades have nothing to attach to.
			continue
		}
		result.CoursesProcessed++

		grades, err := s.api.GetGradeItems(ctx, *account.MoodleID, re.moodleCourseID)
		if err != nil {
			s.logger.Error().Err(err).
				Uint("account_id", account.ID).
				Int64("moodle_course_id", re.moodleCourseID).
				Msg("grade fetch failed, continuing with next course")
			continue
		}

		for _, block := range grades {
			for _, item := range block.GradeItems {
				s.reconcileGradeItem(ctx, shadow, re.enrollment, item, &newGrades, &result)
			}
		}
	}

	gradeOutcome := applyBatch(ctx, s.logger, "grade_item", newGrades, s.gradeItems.CreateBatch, s.gradeItems.Create)
	result.GradesCreated = gradeOutcome.Applied

	return result, nil
}

func (s *enrollmentSyncService) reconcileEnrollments(ctx context.Context, shadow models.MoodleUser, remoteCourses []moodle.RemoteUserCourse, result *dto.EnrollmentSyncResult) ([]resolvedEnrollment, []*models.Enrollment) {
	stamp := s.now()
	resolved := make([]resolvedEnrollment, 0, len(remoteCourses))
	var newEnrollments []*models.Enrollment

	for _, rc := range remoteCourses {
		course, err := s.courses.GetByMoodleID(ctx, rc.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Hard dependency on course sync: grades cannot
				// attach to an unknown course.
				s.logger.Warn().Int64("moodle_course_id", rc.ID).Str("fullname", rc.FullName).
					Msg("course not synced locally, skipping")
				result.CoursesSkipped++
				continue
			}
			s.logger.Error().Err(err).Int64("moodle_course_id", rc.ID).Msg("course lookup failed, skipping")
			result.CoursesSkipped++
			continue
		}

		enrollment, err := s.enrollments.GetByCourseAndUser(ctx, course.ID, shadow.ID)
		if err == nil {
			s.applyCourseSnapshot(&enrollment, rc, stamp)
			if err := s.enrollments.Update(ctx, &enrollment); err != nil {
				s.logger.Error().Err(err).Uint("enrollment_id", enrollment.ID).Msg("enrollment update failed, skipping")
				continue
			}
			result.EnrollmentsUpdated++
			local := enrollment
			resolved = append(resolved, resolvedEnrollment{enrollment: &local, moodleCourseID: rc.ID})
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error().Err(err).Int64("moodle_course_id", rc.ID).Msg("enrollment lookup failed, skipping")
			continue
		}

		fresh := &models.Enrollment{
			CourseID:     course.ID,
			MoodleUserID: shadow.ID,
		}
		s.applyCourseSnapshot(fresh, rc, stamp)
		newEnrollments = append(newEnrollments, fresh)
		resolved = append(resolved, resolvedEnrollment{enrollment: fresh, moodleCourseID: rc.ID, created: true})
	}

	return resolved, newEnrollments
}

func (s *enrollmentSyncService) applyCourseSnapshot(enrollment *models.Enrollment, rc moodle.RemoteUserCourse, stamp time.Time) {
	enrollment.CourseName = rc.FullName
	enrollment.CourseShortName = rc.ShortName
	if enrolledAt := rc.EnrolledAt(); enrolledAt != nil {
		enrollment.EnrolledAt = enrolledAt
	}
	if rc.Progress != nil {
		enrollment.ProgressPercent = *rc.Progress
	}
	enrollment.CompletionState = completionStateFor(rc)
	enrollment.LastSyncedAt = &stamp
}

func completionStateFor(rc moodle.RemoteUserCourse) string {
	if (rc.Completed != nil && *rc.Completed) || (rc.Progress != nil && *rc.Progress >= 100) {
		return models.CompletionCompleted
	}
	if rc.Progress == nil || *rc.Progress > 0 {
		return models.CompletionInProgress
	}
	return models.CompletionNotStarted
}

func (s *enrollmentSyncService) reconcileGradeItem(ctx context.Context, shadow models.MoodleUser, enrollment *models.Enrollment, item moodle.RemoteGradeItem, newGrades *[]*models.GradeItem, result *dto.EnrollmentSyncResult) {
	if item.ID == nil {
		s.logger.Warn().Str("item_name", item.ItemName).Uint("enrollment_id", enrollment.ID).
			Msg("grade item without id, dropping")
		result.GradesSkipped++
		return
	}

	stamp := s.now()
	grade := 0.0
	isNull := item.GradeRaw == nil
	if !isNull {
		grade = *item.GradeRaw
	}

	existing, err := s.gradeItems.GetByNaturalKey(ctx, shadow.ID, enrollment.ID, *item.ID)
	if err == nil {
		existing.ItemName = item.ItemName
		existing.ItemType = item.ItemType
		existing.ItemModule = item.ItemModule
		existing.Grade = grade
		existing.IsNullGrade = isNull
		existing.GradedAt = moodle.TimeFromUnix(item.GradeDateGraded)
		existing.LastSyncedAt = &stamp
		if err := s.gradeItems.Update(ctx, &existing); err != nil {
			s.logger.Error().Err(err).Int64("moodle_item_id", *item.ID).Msg("grade item update failed, skipping")
			result.GradesSkipped++
			return
		}
		result.GradesUpdated++
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error().Err(err).Int64("moodle_item_id", *item.ID).Msg("grade item lookup failed, skipping")
		result.GradesSkipped++
		return
	}

	*newGrades = append(*newGrades, &models.GradeItem{
		MoodleUserID: shadow.ID,
		EnrollmentID: enrollment.ID,
		MoodleItemID: *item.ID,
		ItemName:     item.ItemName,
		ItemType:     item.ItemType,
		ItemModule:   item.ItemModule,
		Grade:        grade,
		IsNullGrade:  isNull,
		GradedAt:     moodle.TimeFromUnix(item.GradeDateGraded),
		LastSyncedAt: &stamp,
	})
}
