package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/digilearn/moodle-sync-api/internal/models"
	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

type assignmentFixture struct {
	courses     *memoryCourseRepo
	assignments *memoryAssignmentRepo
	submissions *memorySubmissionRepo
	accounts    *memoryAccountRepo
	svc         AssignmentSyncService
}

func newAssignmentFixture(api *fakeMoodleAPI) *assignmentFixture {
	f := &assignmentFixture{
		courses:     newMemoryCourseRepo(),
		assignments: newMemoryAssignmentRepo(),
		submissions: newMemorySubmissionRepo(),
		accounts:    newMemoryAccountRepo(),
	}
	f.svc = NewAssignmentSyncService(api, f.courses, f.assignments, f.submissions, f.accounts, zerolog.Nop())
	return f
}

func TestSyncAssignmentsUpsertsAssignmentsAndSubmissions(t *testing.T) {
	api := &fakeMoodleAPI{
		assignments: func(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteCourseAssignments, error) {
			return []moodle.RemoteCourseAssignments{{
				CourseID: moodleCourseID,
				Assignments: []moodle.RemoteAssignment{
					{ID: 10, Name: "Essay", DueDate: 1700000000},
					{ID: 11, Name: "Quiz"},
				},
			}}, nil
		},
		submissions: func(ctx context.Context, assignmentIDs []int64) ([]moodle.RemoteAssignmentSubmissions, error) {
			require.ElementsMatch(t, []int64{10, 11}, assignmentIDs, "all course assignments fetched in one call")
			var graded moodle.RemoteSubmission
			require.NoError(t, json.Unmarshal([]byte(`{"userid": 5, "status": "graded", "grade": "7.5", "timemodified": 1700000100}`), &graded))
			return []moodle.RemoteAssignmentSubmissions{{
				AssignmentID: 10,
				Submissions:  []moodle.RemoteSubmission{graded},
			}}, nil
		},
	}

	f := newAssignmentFixture(api)
	f.courses.add(models.Course{Name: "Algebra", ShortName: "alg", MoodleID: 100, Active: true})
	account := f.accounts.add(models.Account{Name: "Ada", Login: "ada", Email: "ada@example.com", MoodleID: int64Ptr(5)})

	result, err := f.svc.SyncAssignments(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.CoursesProcessed)
	require.Equal(t, 2, result.AssignmentsProcessed)
	require.Equal(t, 1, result.SubmissionsProcessed)
	require.Equal(t, 0, result.SubmissionsSkipped)

	essay, err := f.assignments.GetByMoodleID(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, essay.DueDate)

	quiz, err := f.assignments.GetByMoodleID(context.Background(), 11)
	require.NoError(t, err)
	require.Nil(t, quiz.DueDate, "zero duedate means no due date")

	submission, err := f.submissions.GetByAssignmentAndAccount(context.Background(), essay.ID, account.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusGraded, submission.Status)
	require.NotNil(t, submission.Grade)
	require.InDelta(t, 7.5, *submission.Grade, 0.001, "string grades are parsed")
}

func TestSyncAssignmentsSkipsSubmissionsWithoutAccount(t *testing.T) {
	api := &fakeMoodleAPI{
		assignments: func(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteCourseAssignments, error) {
			return []moodle.RemoteCourseAssignments{{
				CourseID:    moodleCourseID,
				Assignments: []moodle.RemoteAssignment{{ID: 10, Name: "Essay"}},
			}}, nil
		},
		submissions: func(ctx context.Context, assignmentIDs []int64) ([]moodle.RemoteAssignmentSubmissions, error) {
			return []moodle.RemoteAssignmentSubmissions{{
				AssignmentID: 10,
				Submissions: []moodle.RemoteSubmission{
					{UserID: 404, Status: "submitted"},
					{UserID: 5, Status: ""},
				},
			}}, nil
		},
	}

	f := newAssignmentFixture(api)
	f.courses.add(models.Course{Name: "Algebra", ShortName: "alg", MoodleID: 100, Active: true})

	result, err := f.svc.SyncAssignments(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.SubmissionsSkipped, "unknown userid and empty status are both skipped")
	require.Equal(t, 0, result.SubmissionsProcessed)
	require.Empty(t, f.submissions.submissions, "submission sync never creates accounts")
}

func TestSyncAssignmentsIsolatesCourseFailures(t *testing.T) {
	api := &fakeMoodleAPI{
		assignments: func(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteCourseAssignments, error) {
			if moodleCourseID == 200 {
				return nil, &moodle.APIError{Kind: moodle.KindHTTPError, Function: moodle.FnGetAssignments, StatusCode: 503}
			}
			return []moodle.RemoteCourseAssignments{{
				CourseID:    moodleCourseID,
				Assignments: []moodle.RemoteAssignment{{ID: moodleCourseID + 1, Name: "Task"}},
			}}, nil
		},
	}

	f := newAssignmentFixture(api)
	f.courses.add(models.Course{Name: "Fine", ShortName: "ok", MoodleID: 100, Active: true})
	f.courses.add(models.Course{Name: "Down", ShortName: "down", MoodleID: 200, Active: true})
	f.courses.add(models.Course{Name: "Also Fine", ShortName: "ok2", MoodleID: 300, Active: true})

	result, err := f.svc.SyncAssignments(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.CoursesProcessed)
	require.Equal(t, 2, result.AssignmentsProcessed)
}

func TestSyncAssignmentsUpdatesExisting(t *testing.T) {
	api := &fakeMoodleAPI{
		assignments: func(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteCourseAssignments, error) {
			return []moodle.RemoteCourseAssignments{{
				CourseID:    moodleCourseID,
				Assignments: []moodle.RemoteAssignment{{ID: 10, Name: "Essay v2", DueDate: 1800000000}},
			}}, nil
		},
	}

	f := newAssignmentFixture(api)
	course := f.courses.add(models.Course{Name: "Algebra", ShortName: "alg", MoodleID: 100, Active: true})
	existing := &models.Assignment{MoodleID: 10, Name: "Essay", CourseID: course.ID}
	require.NoError(t, f.assignments.Create(context.Background(), existing))

	_, err := f.svc.SyncAssignments(context.Background())
	require.NoError(t, err)

	updated, err := f.assignments.GetByMoodleID(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, existing.ID, updated.ID)
	require.Equal(t, "Essay v2", updated.Name)
	require.NotNil(t, updated.DueDate)
	require.Len(t, f.assignments.assignments, 1)
}
