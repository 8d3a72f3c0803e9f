package service

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

// fakeMoodleAPI substitutes the webservice client in pipeline tests. Unset
// methods return empty results.
type fakeMoodleAPI struct {
	siteInfo      func(ctx context.Context) (moodle.SiteInfo, error)
	courses       func(ctx context.Context) ([]moodle.RemoteCourse, error)
	users         func(ctx context.Context) ([]moodle.RemoteUser, error)
	userCourses   func(ctx context.Context, moodleUserID int64) ([]moodle.RemoteUserCourse, error)
	gradeItems    func(ctx context.Context, moodleUserID, moodleCourseID int64) ([]moodle.RemoteUserGrades, error)
	assignments   func(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteCourseAssignments, error)
	submissions   func(ctx context.Context, assignmentIDs []int64) ([]moodle.RemoteAssignmentSubmissions, error)
	enrolledUsers func(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteEnrolledUser, error)
	completion    func(ctx context.Context, moodleCourseID, moodleUserID int64) ([]moodle.RemoteCompletionStatus, error)
}

func (f *fakeMoodleAPI) GetSiteInfo(ctx context.Context) (moodle.SiteInfo, error) {
	if f.siteInfo == nil {
		return moodle.SiteInfo{}, nil
	}
	return f.siteInfo(ctx)
}

func (f *fakeMoodleAPI) GetCourses(ctx context.Context) ([]moodle.RemoteCourse, error) {
	if f.courses == nil {
		return nil, nil
	}
	return f.courses(ctx)
}

func (f *fakeMoodleAPI) GetUsers(ctx context.Context) ([]moodle.RemoteUser, error) {
	if f.users == nil {
		return nil, nil
	}
	return f.users(ctx)
}

func (f *fakeMoodleAPI) GetUserCourses(ctx context.Context, moodleUserID int64) ([]moodle.RemoteUserCourse, error) {
	if f.userCourses == nil {
		return nil, nil
	}
	return f.userCourses(ctx, moodleUserID)
}

func (f *fakeMoodleAPI) GetGradeItems(ctx context.Context, moodleUserID, moodleCourseID int64) ([]moodle.RemoteUserGrades, error) {
	if f.gradeItems == nil {
		return nil, nil
	}
	return f.gradeItems(ctx, moodleUserID, moodleCourseID)
}

func (f *fakeMoodleAPI) GetAssignments(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteCourseAssignments, error) {
	if f.assignments == nil {
		return nil, nil
	}
	return f.assignments(ctx, moodleCourseID)
}

func (f *fakeMoodleAPI) GetSubmissions(ctx context.Context, assignmentIDs []int64) ([]moodle.RemoteAssignmentSubmissions, error) {
	if f.submissions == nil {
		return nil, nil
	}
	return f.submissions(ctx, assignmentIDs)
}

func (f *fakeMoodleAPI) GetEnrolledUsers(ctx context.Context, moodleCourseID int64) ([]moodle.RemoteEnrolledUser, error) {
	if f.enrolledUsers == nil {
		return nil, nil
	}
	return f.enrolledUsers(ctx, moodleCourseID)
}

func (f *fakeMoodleAPI) GetCompletionStatus(ctx context.Context, moodleCourseID, moodleUserID int64) ([]moodle.RemoteCompletionStatus, error) {
	if f.completion == nil {
		return nil, nil
	}
	return f.completion(ctx, moodleCourseID, moodleUserID)
}

type memoryAccountRepo struct {
	accounts  map[uint]models.Account
	nextID    uint
	createErr func(account *models.Account) error
	batchErr  error
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[uint]models.Account), nextID: 1}
}

func (m *memoryAccountRepo) add(account models.Account) models.Account {
	account.ID = m.nextID
	m.nextID++
	m.accounts[account.ID] = account
	return account
}

func (m *memoryAccountRepo) GetByID(ctx context.Context, id uint) (models.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return models.Account{}, gorm.ErrRecordNotFound
	}
	return account, nil
}

func (m *memoryAccountRepo) GetByMoodleID(ctx context.Context, moodleID int64) (models.Account, error) {
	for _, account := range m.accounts {
		if account.MoodleID != nil && *account.MoodleID == moodleID {
			return account, nil
		}
	}
	return models.Account{}, gorm.ErrRecordNotFound
}

func (m *memoryAccountRepo) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, account := range m.accounts {
		if strings.ToLower(account.Email) == needle {
			return account, nil
		}
	}
	return models.Account{}, gorm.ErrRecordNotFound
}

func (m *memoryAccountRepo) ListWithMoodleID(ctx context.Context) ([]models.Account, error) {
	var out []models.Account
	for id := uint(1); id < m.nextID; id++ {
		if account, ok := m.accounts[id]; ok && account.MoodleID != nil {
			out = append(out, account)
		}
	}
	return out, nil
}

func (m *memoryAccountRepo) ListByMoodleIDsOrEmails(ctx context.Context, moodleIDs []int64, emails []string) ([]models.Account, error) {
	ids := make(map[int64]bool, len(moodleIDs))
	for _, id := range moodleIDs {
		ids[id] = true
	}
	addrs := make(map[string]bool, len(emails))
	for _, email := range emails {
		addrs[strings.ToLower(strings.TrimSpace(email))] = true
	}

	var out []models.Account
	for id := uint(1); id < m.nextID; id++ {
		account, ok := m.accounts[id]
		if !ok {
			continue
		}
		if (account.MoodleID != nil && ids[*account.MoodleID]) || addrs[strings.ToLower(account.Email)] {
			out = append(out, account)
		}
	}
	return out, nil
}

func (m *memoryAccountRepo) Create(ctx context.Context, account *models.Account) error {
	if m.createErr != nil {
		if err := m.createErr(account); err != nil {
			return err
		}
	}
	account.ID = m.nextID
	m.nextID++
	m.accounts[account.ID] = *account
	return nil
}

func (m *memoryAccountRepo) CreateBatch(ctx context.Context, accounts []*models.Account) error {
	if m.batchErr != nil {
		return m.batchErr
	}
	for _, account := range accounts {
		if err := m.Create(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryAccountRepo) Update(ctx context.Context, account *models.Account) error {
	if _, ok := m.accounts[account.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.accounts[account.ID] = *account
	return nil
}

type memoryMoodleUserRepo struct {
	users     map[uint]models.MoodleUser
	nextID    uint
	createErr func(user *models.MoodleUser) error
	batchErr  error
}

func newMemoryMoodleUserRepo() *memoryMoodleUserRepo {
	return &memoryMoodleUserRepo{users: make(map[uint]models.MoodleUser), nextID: 1}
}

func (m *memoryMoodleUserRepo) add(user models.MoodleUser) models.MoodleUser {
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return user
}

func (m *memoryMoodleUserRepo) GetByMoodleID(ctx context.Context, moodleID int64) (models.MoodleUser, error) {
	for _, user := range m.users {
		if user.MoodleID == moodleID {
			return user, nil
		}
	}
	return models.MoodleUser{}, gorm.ErrRecordNotFound
}

func (m *memoryMoodleUserRepo) ListByMoodleIDs(ctx context.Context, moodleIDs []int64) ([]models.MoodleUser, error) {
	ids := make(map[int64]bool, len(moodleIDs))
	for _, id := range moodleIDs {
		ids[id] = true
	}
	var out []models.MoodleUser
	for id := uint(1); id < m.nextID; id++ {
		if user, ok := m.users[id]; ok && ids[user.MoodleID] {
			out = append(out, user)
		}
	}
	return out, nil
}

func (m *memoryMoodleUserRepo) Create(ctx context.Context, user *models.MoodleUser) error {
	if m.createErr != nil {
		if err := m.createErr(user); err != nil {
			return err
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = *user
	return nil
}

func (m *memoryMoodleUserRepo) CreateBatch(ctx context.Context, users []*models.MoodleUser) error {
	if m.batchErr != nil {
		return m.batchErr
	}
	for _, user := range users {
		if err := m.Create(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryMoodleUserRepo) Update(ctx context.Context, user *models.MoodleUser) error {
	if _, ok := m.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.users[user.ID] = *user
	return nil
}

type memoryCourseRepo struct {
	courses   map[uint]models.Course
	nextID    uint
	updateErr func(course *models.Course) error
}

func newMemoryCourseRepo() *memoryCourseRepo {
	return &memoryCourseRepo{courses: make(map[uint]models.Course), nextID: 1}
}

func (m *memoryCourseRepo) add(course models.Course) models.Course {
	course.ID = m.nextID
	m.nextID++
	m.courses[course.ID] = course
	return course
}

func (m *memoryCourseRepo) GetByMoodleID(ctx context.Context, moodleID int64) (models.Course, error) {
	for _, course := range m.courses {
		if course.MoodleID == moodleID {
			return course, nil
		}
	}
	return models.Course{}, gorm.ErrRecordNotFound
}

func (m *memoryCourseRepo) ListActive(ctx context.Context) ([]models.Course, error) {
	var out []models.Course
	for id := uint(1); id < m.nextID; id++ {
		if course, ok := m.courses[id]; ok && course.Active {
			out = append(out, course)
		}
	}
	return out, nil
}

func (m *memoryCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = m.nextID
	m.nextID++
	m.courses[course.ID] = *course
	return nil
}

func (m *memoryCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if m.updateErr != nil {
		if err := m.updateErr(course); err != nil {
			return err
		}
	}
	if _, ok := m.courses[course.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.courses[course.ID] = *course
	return nil
}

type memoryEnrollmentRepo struct {
	enrollments map[uint]models.Enrollment
	nextID      uint
	batchErr    error
	createErr   func(enrollment *models.Enrollment) error
}

func newMemoryEnrollmentRepo() *memoryEnrollmentRepo {
	return &memoryEnrollmentRepo{enrollments: make(map[uint]models.Enrollment), nextID: 1}
}

func (m *memoryEnrollmentRepo) GetByCourseAndUser(ctx context.Context, courseID, moodleUserID uint) (models.Enrollment, error) {
	for _, enrollment := range m.enrollments {
		if enrollment.CourseID == courseID && enrollment.MoodleUserID == moodleUserID {
			return enrollment, nil
		}
	}
	return models.Enrollment{}, gorm.ErrRecordNotFound
}

func (m *memoryEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		if err := m.createErr(enrollment); err != nil {
			return err
		}
	}
	enrollment.ID = m.nextID
	m.nextID++
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *memoryEnrollmentRepo) CreateBatch(ctx context.Context, enrollments []*models.Enrollment) error {
	if m.batchErr != nil {
		return m.batchErr
	}
	for _, enrollment := range enrollments {
		if err := m.Create(ctx, enrollment); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	if _, ok := m.enrollments[enrollment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

type memoryGradeItemRepo struct {
	items  map[uint]models.GradeItem
	nextID uint
}

func newMemoryGradeItemRepo() *memoryGradeItemRepo {
	return &memoryGradeItemRepo{items: make(map[uint]models.GradeItem), nextID: 1}
}

func (m *memoryGradeItemRepo) GetByNaturalKey(ctx context.Context, moodleUserID, enrollmentID uint, moodleItemID int64) (models.GradeItem, error) {
	for _, item := range m.items {
		if item.MoodleUserID == moodleUserID && item.EnrollmentID == enrollmentID && item.MoodleItemID == moodleItemID {
			return item, nil
		}
	}
	return models.GradeItem{}, gorm.ErrRecordNotFound
}

func (m *memoryGradeItemRepo) Create(ctx context.Context, item *models.GradeItem) error {
	item.ID = m.nextID
	m.nextID++
	m.items[item.ID] = *item
	return nil
}

func (m *memoryGradeItemRepo) CreateBatch(ctx context.Context, items []*models.GradeItem) error {
	for _, item := range items {
		if err := m.Create(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryGradeItemRepo) Update(ctx context.Context, item *models.GradeItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.items[item.ID] = *item
	return nil
}

type memoryAssignmentRepo struct {
	assignments map[uint]models.Assignment
	nextID      uint
}

func newMemoryAssignmentRepo() *memoryAssignmentRepo {
	return &memoryAssignmentRepo{assignments: make(map[uint]models.Assignment), nextID: 1}
}

func (m *memoryAssignmentRepo) GetByMoodleID(ctx context.Context, moodleID int64) (models.Assignment, error) {
	for _, assignment := range m.assignments {
		if assignment.MoodleID == moodleID {
			return assignment, nil
		}
	}
	return models.Assignment{}, gorm.ErrRecordNotFound
}

func (m *memoryAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.ID = m.nextID
	m.nextID++
	m.assignments[assignment.ID] = *assignment
	return nil
}

func (m *memoryAssignmentRepo) CreateBatch(ctx context.Context, assignments []*models.Assignment) error {
	for _, assignment := range assignments {
		if err := m.Create(ctx, assignment); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	if _, ok := m.assignments[assignment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.assignments[assignment.ID] = *assignment
	return nil
}

type memorySubmissionRepo struct {
	submissions map[uint]models.Submission
	nextID      uint
}

func newMemorySubmissionRepo() *memorySubmissionRepo {
	return &memorySubmissionRepo{submissions: make(map[uint]models.Submission), nextID: 1}
}

func (m *memorySubmissionRepo) GetByAssignmentAndAccount(ctx context.Context, assignmentID, accountID uint) (models.Submission, error) {
	for _, submission := range m.submissions {
		if submission.AssignmentID == assignmentID && submission.AccountID == accountID {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (m *memorySubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	submission.ID = m.nextID
	m.nextID++
	m.submissions[submission.ID] = *submission
	return nil
}

func (m *memorySubmissionRepo) CreateBatch(ctx context.Context, submissions []*models.Submission) error {
	for _, submission := range submissions {
		if err := m.Create(ctx, submission); err != nil {
			return err
		}
	}
	return nil
}

func (m *memorySubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	if _, ok := m.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.submissions[submission.ID] = *submission
	return nil
}

type memoryCourseTeacherRepo struct {
	teachers map[uint]models.CourseTeacher
	nextID   uint
}

func newMemoryCourseTeacherRepo() *memoryCourseTeacherRepo {
	return &memoryCourseTeacherRepo{teachers: make(map[uint]models.CourseTeacher), nextID: 1}
}

func (m *memoryCourseTeacherRepo) GetByAccountAndCourse(ctx context.Context, accountID, courseID uint) (models.CourseTeacher, error) {
	for _, teacher := range m.teachers {
		if teacher.AccountID == accountID && teacher.CourseID == courseID {
			return teacher, nil
		}
	}
	return models.CourseTeacher{}, gorm.ErrRecordNotFound
}

func (m *memoryCourseTeacherRepo) Create(ctx context.Context, teacher *models.CourseTeacher) error {
	teacher.ID = m.nextID
	m.nextID++
	m.teachers[teacher.ID] = *teacher
	return nil
}

func (m *memoryCourseTeacherRepo) Update(ctx context.Context, teacher *models.CourseTeacher) error {
	if _, ok := m.teachers[teacher.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.teachers[teacher.ID] = *teacher
	return nil
}

type memoryProgressRepo struct {
	records map[uint]models.ActivityProgress
	nextID  uint
}

func newMemoryProgressRepo() *memoryProgressRepo {
	return &memoryProgressRepo{records: make(map[uint]models.ActivityProgress), nextID: 1}
}

func (m *memoryProgressRepo) GetByNaturalKey(ctx context.Context, accountID, courseID uint, courseModuleID int64) (models.ActivityProgress, error) {
	for _, record := range m.records {
		if record.AccountID == accountID && record.CourseID == courseID && record.CourseModuleID == courseModuleID {
			return record, nil
		}
	}
	return models.ActivityProgress{}, gorm.ErrRecordNotFound
}

func (m *memoryProgressRepo) Create(ctx context.Context, progress *models.ActivityProgress) error {
	progress.ID = m.nextID
	m.nextID++
	m.records[progress.ID] = *progress
	return nil
}

func (m *memoryProgressRepo) Update(ctx context.Context, progress *models.ActivityProgress) error {
	if _, ok := m.records[progress.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.records[progress.ID] = *progress
	return nil
}

type memorySyncRunRepo struct {
	runs   map[uint]models.SyncRun
	nextID uint
}

func newMemorySyncRunRepo() *memorySyncRunRepo {
	return &memorySyncRunRepo{runs: make(map[uint]models.SyncRun), nextID: 1}
}

func (m *memorySyncRunRepo) Create(ctx context.Context, run *models.SyncRun) error {
	run.ID = m.nextID
	m.nextID++
	m.runs[run.ID] = *run
	return nil
}

func (m *memorySyncRunRepo) Update(ctx context.Context, run *models.SyncRun) error {
	if _, ok := m.runs[run.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *memorySyncRunRepo) ListRecent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	var out []models.SyncRun
	for id := m.nextID - 1; id >= 1 && len(out) < limit; id-- {
		if run, ok := m.runs[id]; ok {
			out = append(out, run)
		}
	}
	return out, nil
}

func int64Ptr(v int64) *int64 { return &v }

func float64Ptr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }
