package moodle

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// SiteInfo is the response of core_webservice_get_site_info.
type SiteInfo struct {
	SiteName  string         `json:"sitename" validate:"required"`
	Version   string         `json:"version" validate:"required"`
	Release   string         `json:"release"`
	Functions []SiteFunction `json:"functions"`
}

// SiteFunction is one webservice function enabled for the token.
type SiteFunction struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HasFunction reports whether the token can call the named ws function.
func (s SiteInfo) HasFunction(name string) bool {
	for _, fn := range s.Functions {
		if fn.Name == name {
			return true
		}
	}
	return false
}

// RemoteCourse is one entry of core_course_get_courses.
type RemoteCourse struct {
	ID        int64  `json:"id" validate:"required"`
	FullName  string `json:"fullname"`
	ShortName string `json:"shortname"`
}

// RemoteUser is one entry of the core_user_get_users directory listing.
type RemoteUser struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type userListEnvelope struct {
	Users []RemoteUser `json:"users"`
}

// RemoteEnrolment is the nested enrolment record inside a user-course entry.
type RemoteEnrolment struct {
	TimeCreated int64 `json:"timecreated"`
}

// RemoteUserCourse is one entry of core_enrol_get_users_courses.
type RemoteUserCourse struct {
	ID         int64             `json:"id" validate:"required"`
	FullName   string            `json:"fullname"`
	ShortName  string            `json:"shortname"`
	Progress   *float64          `json:"progress"`
	Completed  *bool             `json:"completed"`
	Enrolments []RemoteEnrolment `json:"enrolments"`
}

// EnrolledAt returns the creation time of the first nested enrolment
// record, or nil when the remote does not provide one.
func (c RemoteUserCourse) EnrolledAt() *time.Time {
	for _, e := range c.Enrolments {
		if e.TimeCreated > 0 {
			return TimeFromUnix(e.TimeCreated)
		}
	}
	return nil
}

// RemoteGradeItem is one grade-report line for a user in a course. ID is a
// pointer because items without an id must be dropped, not zero-defaulted.
type RemoteGradeItem struct {
	ID              *int64   `json:"id"`
	ItemName        string   `json:"itemname"`
	ItemType        string   `json:"itemtype"`
	ItemModule      string   `json:"itemmodule"`
	GradeRaw        *float64 `json:"graderaw"`
	GradeDateGraded int64    `json:"gradedategraded"`
}

// RemoteUserGrades groups the grade items of one course block.
type RemoteUserGrades struct {
	CourseID   int64             `json:"courseid"`
	GradeItems []RemoteGradeItem `json:"gradeitems"`
}

type gradeReportEnvelope struct {
	UserGrades []RemoteUserGrades `json:"usergrades"`
}

// RemoteAssignment is one assignment definition inside a course block of
// mod_assign_get_assignments.
type RemoteAssignment struct {
	ID      int64  `json:"id" validate:"required"`
	Name    string `json:"name"`
	DueDate int64  `json:"duedate"`
}

// RemoteCourseAssignments is one course block of mod_assign_get_assignments.
type RemoteCourseAssignments struct {
	CourseID    int64              `json:"id"`
	Assignments []RemoteAssignment `json:"assignments"`
}

type assignmentsEnvelope struct {
	Courses []RemoteCourseAssignments `json:"courses"`
}

// FlexGrade tolerates the layouts different Moodle versions use for a
// submission grade: a bare number, a numeric string, or null.
type FlexGrade struct {
	Value float64
	Set   bool
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (g *FlexGrade) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		g.Set = false
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" || s == "-" {
			g.Set = false
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			g.Set = false
			return nil
		}
		g.Value, g.Set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	g.Value, g.Set = v, true
	return nil
}

// Ptr returns the grade as a nullable float.
func (g FlexGrade) Ptr() *float64 {
	if !g.Set {
		return nil
	}
	v := g.Value
	return &v
}

// RemoteSubmission is one entry of mod_assign_get_submissions. The grade
// arrives either top-level or nested depending on the remote version; the
// explicit top-level field wins when both are present.
type RemoteSubmission struct {
	UserID       int64     `json:"userid"`
	Status       string    `json:"status"`
	TimeModified int64     `json:"timemodified"`
	RawGrade     FlexGrade `json:"grade"`
	GradeInfo    *struct {
		Grade FlexGrade `json:"grade"`
	} `json:"gradeinfo"`
}

// Grade resolves the submission grade across the tolerated layouts.
func (s RemoteSubmission) Grade() *float64 {
	if s.RawGrade.Set {
		return s.RawGrade.Ptr()
	}
	if s.GradeInfo != nil {
		return s.GradeInfo.Grade.Ptr()
	}
	return nil
}

// RemoteAssignmentSubmissions is one assignment block of
// mod_assign_get_submissions.
type RemoteAssignmentSubmissions struct {
	AssignmentID int64              `json:"assignmentid"`
	Submissions  []RemoteSubmission `json:"submissions"`
}

type submissionsEnvelope struct {
	Assignments []RemoteAssignmentSubmissions `json:"assignments"`
}

// RemoteRole is a role held by an enrolled user.
type RemoteRole struct {
	RoleID int64  `json:"roleid"`
	Name   string `json:"name"`
}

// RemoteEnrolledUser is one entry of core_enrol_get_enrolled_users.
type RemoteEnrolledUser struct {
	ID       int64        `json:"id"`
	FullName string       `json:"fullname"`
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Roles    []RemoteRole `json:"roles"`
}

// HasAnyRole reports whether the user holds any of the given role ids.
func (u RemoteEnrolledUser) HasAnyRole(roleIDs []int64) bool {
	for _, role := range u.Roles {
		for _, id := range roleIDs {
			if role.RoleID == id {
				return true
			}
		}
	}
	return false
}

// RemoteCompletionStatus is one entry of
// core_completion_get_activities_completion_status. CourseModuleID is a
// pointer because entries without a cmid must be dropped.
type RemoteCompletionStatus struct {
	CourseModuleID  *int64 `json:"cmid"`
	ActivityName    string `json:"activityname"`
	CompletionState int    `json:"completionstate"`
	TimeModified    int64  `json:"timemodified"`
}

type completionEnvelope struct {
	Statuses []RemoteCompletionStatus `json:"statuses"`
}

// TimeFromUnix converts UNIX seconds to a nullable time, treating zero and
// negative values as absent.
func TimeFromUnix(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
