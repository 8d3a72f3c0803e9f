package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/digilearn/moodle-sync-api/internal/service"
	"github.com/digilearn/moodle-sync-api/internal/utils"
)

// Pipeline names used for run locks, audit rows and metrics labels.
const (
	PipelineCourses     = "courses"
	PipelineUsers       = "users"
	PipelineEnrollments = "enrollments"
	PipelineAssignments = "assignments"
	PipelineTeachers    = "teachers"
	PipelineProgress    = "progress"
)

const defaultRunsLimit = 20

// SyncHandler wires the sync pipeline HTTP routes.
type SyncHandler struct {
	runner      service.SyncRunner
	courses     service.CourseSyncService
	users       service.UserSyncService
	enrollments service.EnrollmentSyncService
	assignments service.AssignmentSyncService
	teachers    service.TeacherSyncService
	progress    service.ProgressSyncService
	logger      zerolog.Logger
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(
	runner service.SyncRunner,
	courses service.CourseSyncService,
	users service.UserSyncService,
	enrollments service.EnrollmentSyncService,
	assignments service.AssignmentSyncService,
	teachers service.TeacherSyncService,
	progress service.ProgressSyncService,
	logger zerolog.Logger,
) *SyncHandler {
	return &SyncHandler{
		runner:      runner,
		courses:     courses,
		users:       users,
		enrollments: enrollments,
		assignments: assignments,
		teachers:    teachers,
		progress:    progress,
		logger:      logger.With().Str("component", "sync_handler").Logger(),
	}
}

// Register attaches sync endpoints to the router group.
func (h *SyncHandler) Register(router fiber.Router) {
	router.Post("/courses", h.syncCourses)
	router.Post("/users", h.syncUsers)
	router.Post("/enrollments", h.syncEnrollments)
	router.Post("/assignments", h.syncAssignments)
	router.Post("/teachers", h.syncTeachers)
	router.Post("/progress", h.syncProgress)
	router.Get("/runs", h.listRuns)
}

func (h *SyncHandler) syncCourses(c *fiber.Ctx) error {
	return h.run(c, PipelineCourses, func(ctx context.Context) (any, error) {
		return h.courses.SyncCourses(ctx)
	})
}

func (h *SyncHandler) syncUsers(c *fiber.Ctx) error {
	return h.run(c, PipelineUsers, func(ctx context.Context) (any, error) {
		return h.users.SyncUsers(ctx)
	})
}

// syncEnrollments runs the fleet pipeline, or a single account when the
// account_id query parameter is present.
func (h *SyncHandler) syncEnrollments(c *fiber.Ctx) error {
	rawID := c.Query("account_id")
	if rawID == "" {
		return h.run(c, PipelineEnrollments, func(ctx context.Context) (any, error) {
			return h.enrollments.SyncFleet(ctx)
		})
	}

	accountID, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "account_id must be a positive integer")
	}

	// Single-account syncs share the fleet lock so they never overlap
	// with a fleet run mutating the same rows.
	return h.run(c, PipelineEnrollments, func(ctx context.Context) (any, error) {
		return h.enrollments.SyncAccount(ctx, uint(accountID))
	})
}

func (h *SyncHandler) syncAssignments(c *fiber.Ctx) error {
	return h.run(c, PipelineAssignments, func(ctx context.Context) (any, error) {
		return h.assignments.SyncAssignments(ctx)
	})
}

func (h *SyncHandler) syncTeachers(c *fiber.Ctx) error {
	return h.run(c, PipelineTeachers, func(ctx context.Context) (any, error) {
		return h.teachers.SyncTeachers(ctx)
	})
}

func (h *SyncHandler) syncProgress(c *fiber.Ctx) error {
	return h.run(c, PipelineProgress, func(ctx context.Context) (any, error) {
		return h.progress.SyncProgress(ctx)
	})
}

func (h *SyncHandler) listRuns(c *fiber.Ctx) error {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return utils.SendError(c, fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	runs, err := h.runner.RecentRuns(c.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list sync runs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list sync runs")
	}

	return utils.SendSuccess(c, "sync runs retrieved", runs)
}

func (h *SyncHandler) run(c *fiber.Ctx, pipeline string, fn service.PipelineFunc) error {
	run, _, err := h.runner.Run(c.Context(), pipeline, fn)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSyncInProgress):
			return utils.SendError(c, fiber.StatusConflict, "sync already in progress")
		case errors.Is(err, service.ErrAccountNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "account not found")
		case errors.Is(err, service.ErrAccountNotLinked):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, "account has no moodle id")
		}

		h.logger.Error().Err(err).Str("pipeline", pipeline).Msg("sync pipeline failed")

		// The run row still records the failure, return it for diagnostics.
		return c.Status(fiber.StatusBadGateway).JSON(utils.APIResponse{
			Success: false,
			Data:    run,
			Message: "sync failed",
		})
	}

	return utils.SendSuccess(c, "sync completed", run)
}
