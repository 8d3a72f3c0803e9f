package service

import (
	"context"

	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

// MoodleAPI is the slice of the webservice client the sync pipelines
// consume. *moodle.Client satisfies it; tests substitute fakes.
type MoodleAPI interface {
	GetSiteInfo(ctx context.Context) (moodle.SiteInfo, error)
	GetCourses(ctx context.Context) ([]moodle.RemoteCourse, error)
	GetUsers(ctx context.Context) ([]moodle.RemoteUser, error)
	GetUserCourses(ctx context.Context, moodleUserID int64) ([]moodle.RemoteUserCourse, error)
	GetGradeItems(ctx context.Context, moodleUserID, moodleCourseID int64) ([]moodle.RemoteUserGrades, error)
	GetAssignments(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteCourseAssignments, error)
	GetSubmissions(ctx context.Context, assignmentIDs []int64) ([]moodle.RemoteAssignmentSubmissions, error)
	GetEnrolledUsers(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteEnrolledUser, error)
	GetCompletionStatus(ctx context.Context, moodleCourseID, moodleUserID int64) ([]moodle.RemoteCompletionStatus, error)
}
