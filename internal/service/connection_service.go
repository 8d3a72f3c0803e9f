package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/digilearn/moodle-sync-api/internal/dto"
	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

// requiredFunctions are the webservice functions the sync engine calls.
var requiredFunctions = []string{
	moodle.FnGetCourses,
	moodle.FnGetUsers,
	moodle.FnGetUserCourses,
	moodle.FnGetGradeItems,
	moodle.FnGetAssignments,
	moodle.FnGetSubmissions,
	moodle.FnGetEnrolledUsers,
	moodle.FnGetCompletion,
}

// ConnectionService probes the remote instance: basic reachability plus a
// check that the token can call every function the engine needs.
type ConnectionService interface {
	Check(ctx context.Context) (dto.ConnectionCheckResult, error)
}

type connectionService struct {
	api      MoodleAPI
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewConnectionService builds the connection probe.
func NewConnectionService(api MoodleAPI, logger zerolog.Logger) ConnectionService {
	return &connectionService{
		api:      api,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "connection_service").Logger(),
	}
}

func (s *connectionService) Check(ctx context.Context) (dto.ConnectionCheckResult, error) {
	info, err := s.api.GetSiteInfo(ctx)
	if err != nil {
		return dto.ConnectionCheckResult{}, err
	}
	if err := s.validate.Struct(info); err != nil {
		return dto.ConnectionCheckResult{}, fmt.Errorf("incomplete site info response: %w", err)
	}

	available := make(map[string]bool, len(requiredFunctions))
	for _, fn := range requiredFunctions {
		available[fn] = info.HasFunction(fn)
		if !available[fn] {
			s.logger.Warn().Str("function", fn).Msg("webservice function not enabled for token")
		}
	}

	return dto.ConnectionCheckResult{
		SiteName:         info.SiteName,
		Version:          info.Version,
		Release:          info.Release,
		RequiredFunction: available,
	}, nil
}
