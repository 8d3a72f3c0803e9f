// Package moodle is a thin client for the Moodle REST webservice protocol:
// a single GET endpoint taking a shared-secret token, a function name and
// function-specific parameters, returning JSON.
package moodle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	restPath   = "/webservice/rest/server.php"
	restFormat = "json"

	defaultTimeout = 15 * time.Second
	// Bulk endpoints (submissions for many assignments) return large
	// arrays and get a longer timeout.
	defaultBulkTimeout = 60 * time.Second
)

// Webservice functions used by the sync engine.
const (
	FnGetSiteInfo      = "core_webservice_get_site_info"
	FnGetCourses       = "core_course_get_courses"
	FnGetUsers         = "core_user_get_users"
	FnGetUserCourses   = "core_enrol_get_users_courses"
	FnGetGradeItems    = "gradereport_user_get_grade_items"
	FnGetAssignments   = "mod_assign_get_assignments"
	FnGetSubmissions   = "mod_assign_get_submissions"
	FnGetEnrolledUsers = "core_enrol_get_enrolled_users"
	FnGetCompletion    = "core_completion_get_activities_completion_status"
)

// Error codes Moodle reports when completion tracking is switched off for a
// course. Callers short-circuit the whole course on these.
var CompletionDisabledCodes = []string{"completionnotenabled", "nocompletionenabled"}

// Config carries the connection settings for the remote instance.
type Config struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	BulkTimeout time.Duration
}

// Client performs synchronous, bounded-timeout calls against one Moodle
// instance.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	token       string
	timeout     time.Duration
	bulkTimeout time.Duration
	logger      zerolog.Logger
}

// New constructs a webservice client. The endpoint is derived from the base
// URL by trimming any trailing slash and appending the fixed REST path.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Token == "" {
		return nil, fmt.Errorf("moodle url and token must be provided")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	bulkTimeout := cfg.BulkTimeout
	if bulkTimeout <= 0 {
		bulkTimeout = defaultBulkTimeout
	}

	return &Client{
		httpClient:  &http.Client{},
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + restPath,
		token:       cfg.Token,
		timeout:     timeout,
		bulkTimeout: bulkTimeout,
		logger:      logger.With().Str("component", "moodle_client").Logger(),
	}, nil
}

// Call invokes a webservice function with the default timeout.
func (c *Client) Call(ctx context.Context, function string, params url.Values) (json.RawMessage, error) {
	return c.call(ctx, function, params, c.timeout)
}

// CallBulk invokes a webservice function with the extended bulk timeout.
func (c *Client) CallBulk(ctx context.Context, function string, params url.Values) (json.RawMessage, error) {
	return c.call(ctx, function, params, c.bulkTimeout)
}

func (c *Client) call(ctx context.Context, function string, params url.Values, timeout time.Duration) (json.RawMessage, error) {
	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("wstoken", c.token)
	query.Set("wsfunction", function)
	query.Set("moodlewsrestformat", restFormat)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &APIError{Kind: KindConnectionFailure, Function: function, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransport(function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classifyTransport(function, err)
	}

	c.logger.Debug().
		Str("function", function).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("webservice call completed")

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Kind: KindHTTPError, Function: function, StatusCode: resp.StatusCode}
	}

	if !json.Valid(body) {
		return nil, &APIError{Kind: KindMalformedResponse, Function: function, Message: "response is not valid JSON"}
	}

	// A JSON object carrying an "exception" key is Moodle's error
	// envelope, regardless of HTTP status.
	var envelope struct {
		Exception string `json:"exception"`
		ErrorCode string `json:"errorcode"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Exception != "" {
		return nil, &APIError{
			Kind:     KindRemoteException,
			Function: function,
			Code:     envelope.ErrorCode,
			Message:  envelope.Message,
		}
	}

	return json.RawMessage(body), nil
}

func (c *Client) classifyTransport(function string, err error) *APIError {
	kind := KindConnectionFailure
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &APIError{Kind: kind, Function: function, Err: err}
}

func (c *Client) decode(raw json.RawMessage, function string, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Kind: KindMalformedResponse, Function: function, Message: err.Error()}
	}
	return nil
}

// GetSiteInfo fetches site metadata and the function list enabled for the
// configured token.
func (c *Client) GetSiteInfo(ctx context.Context) (SiteInfo, error) {
	raw, err := c.Call(ctx, FnGetSiteInfo, nil)
	if err != nil {
		return SiteInfo{}, err
	}
	var info SiteInfo
	if err := c.decode(raw, FnGetSiteInfo, &info); err != nil {
		return SiteInfo{}, err
	}
	return info, nil
}

// GetCourses fetches the full remote course list.
func (c *Client) GetCourses(ctx context.Context) ([]RemoteCourse, error) {
	raw, err := c.Call(ctx, FnGetCourses, nil)
	if err != nil {
		return nil, err
	}
	var courses []RemoteCourse
	if err := c.decode(raw, FnGetCourses, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// GetUsers fetches the full remote user directory. The endpoint requires a
// non-empty search criterion; "%" against the email field is the protocol's
// documented match-all.
func (c *Client) GetUsers(ctx context.Context) ([]RemoteUser, error) {
	params := url.Values{}
	params.Set("criteria[0][key]", "email")
	params.Set("criteria[0][value]", "%")

	raw, err := c.Call(ctx, FnGetUsers, params)
	if err != nil {
		return nil, err
	}
	var envelope userListEnvelope
	if err := c.decode(raw, FnGetUsers, &envelope); err != nil {
		return nil, err
	}
	if envelope.Users == nil {
		return nil, &APIError{Kind: KindMalformedResponse, Function: FnGetUsers, Message: "missing users key"}
	}
	return envelope.Users, nil
}

// GetUserCourses fetches the courses a remote user is enrolled in. An empty
// list is a valid result.
func (c *Client) GetUserCourses(ctx context.Context, moodleUserID int64) ([]RemoteUserCourse, error) {
	params := url.Values{}
	params.Set("userid", strconv.FormatInt(moodleUserID, 10))

	raw, err := c.Call(ctx, FnGetUserCourses, params)
	if err != nil {
		return nil, err
	}
	var courses []RemoteUserCourse
	if err := c.decode(raw, FnGetUserCourses, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// GetGradeItems fetches the grade report for a user in a course. The
// response nests per-course grade blocks, each holding a list of items.
func (c *Client) GetGradeItems(ctx context.Context, moodleUserID, moodleCourseID int64) ([]RemoteUserGrades, error) {
	params := url.Values{}
	params.Set("userid", strconv.FormatInt(moodleUserID, 10))
	params.Set("courseid", strconv.FormatInt(moodleCourseID, 10))

	raw, err := c.Call(ctx, FnGetGradeItems, params)
	if err != nil {
		return nil, err
	}
	var envelope gradeReportEnvelope
	if err := c.decode(raw, FnGetGradeItems, &envelope); err != nil {
		return nil, err
	}
	return envelope.UserGrades, nil
}

// GetAssignments fetches the assignments of one course.
func (c *Client) GetAssignments(ctx context.Context, moodleCourseID int64) ([]RemoteCourseAssignments, error) {
	params := url.Values{}
	params.Set("courseids[0]", strconv.FormatInt(moodleCourseID, 10))

	raw, err := c.Call(ctx, FnGetAssignments, params)
	if err != nil {
		return nil, err
	}
	var envelope assignmentsEnvelope
	if err := c.decode(raw, FnGetAssignments, &envelope); err != nil {
		return nil, err
	}
	if envelope.Courses == nil {
		return nil, &APIError{Kind: KindMalformedResponse, Function: FnGetAssignments, Message: "missing courses key"}
	}
	return envelope.Courses, nil
}

// GetSubmissions fetches the submissions of many assignments in one call.
// The protocol requires repeating the id parameter with index suffixes.
func (c *Client) GetSubmissions(ctx context.Context, assignmentIDs []int64) ([]RemoteAssignmentSubmissions, error) {
	params := url.Values{}
	for i, id := range assignmentIDs {
		params.Set(fmt.Sprintf("assignmentids[%d]", i), strconv.FormatInt(id, 10))
	}

	raw, err := c.CallBulk(ctx, FnGetSubmissions, params)
	if err != nil {
		return nil, err
	}
	var envelope submissionsEnvelope
	if err := c.decode(raw, FnGetSubmissions, &envelope); err != nil {
		return nil, err
	}
	if envelope.Assignments == nil {
		return nil, &APIError{Kind: KindMalformedResponse, Function: FnGetSubmissions, Message: "missing assignments key"}
	}
	return envelope.Assignments, nil
}

// GetEnrolledUsers fetches everyone enrolled in a course, with their roles.
func (c *Client) GetEnrolledUsers(ctx context.Context, moodleCourseID int64) ([]RemoteEnrolledUser, error) {
	params := url.Values{}
	params.Set("courseid", strconv.FormatInt(moodleCourseID, 10))

	raw, err := c.Call(ctx, FnGetEnrolledUsers, params)
	if err != nil {
		return nil, err
	}
	var users []RemoteEnrolledUser
	if err := c.decode(raw, FnGetEnrolledUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetCompletionStatus fetches activity completion for a user in a course.
func (c *Client) GetCompletionStatus(ctx context.Context, moodleCourseID, moodleUserID int64) ([]RemoteCompletionStatus, error) {
	params := url.Values{}
	params.Set("courseid", strconv.FormatInt(moodleCourseID, 10))
	params.Set("userid", strconv.FormatInt(moodleUserID, 10))

	raw, err := c.Call(ctx, FnGetCompletion, params)
	if err != nil {
		return nil, err
	}
	var envelope completionEnvelope
	if err := c.decode(raw, FnGetCompletion, &envelope); err != nil {
		return nil, err
	}
	return envelope.Statuses, nil
}
