package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

// AccountRepository provides access to CRM account records.
type AccountRepository interface {
	GetByID(ctx context.Context, id uint) (models.Account, error)
	GetByMoodleID(ctx context.Context, moodleID int64) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	ListWithMoodleID(ctx context.Context) ([]models.Account, error)
	ListByMoodleIDsOrEmails(ctx context.Context, moodleIDs []int64, emails []string) ([]models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	CreateBatch(ctx context.Context, accounts []*models.Account) error
	Update(ctx context.Context, account *models.Account) error
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository constructs an account repository.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (r *accountRepository) GetByMoodleID(ctx context.Context, moodleID int64) (models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("moodle_id = ?", moodleID).First(&account).Error; err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&account).Error
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (r *accountRepository) ListWithMoodleID(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := r.db.WithContext(ctx).Where("moodle_id IS NOT NULL").Order("id").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) ListByMoodleIDsOrEmails(ctx context.Context, moodleIDs []int64, emails []string) ([]models.Account, error) {
	if len(moodleIDs) == 0 && len(emails) == 0 {
		return nil, nil
	}

	lowered := make([]string, 0, len(emails))
	for _, email := range emails {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(email)))
	}

	query := r.db.WithContext(ctx)
	switch {
	case len(moodleIDs) > 0 && len(lowered) > 0:
		query = query.Where("moodle_id IN ? OR LOWER(email) IN ?", moodleIDs, lowered)
	case len(moodleIDs) > 0:
		query = query.Where("moodle_id IN ?", moodleIDs)
	default:
		query = query.Where("LOWER(email) IN ?", lowered)
	}

	var accounts []models.Account
	if err := query.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) CreateBatch(ctx context.Context, accounts []*models.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(accounts).Error
}

func (r *accountRepository) Update(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}
