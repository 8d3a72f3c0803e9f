package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
	"github.com/digilearn/moodle-sync-api/internal/repository"
)

// ErrIdentityConflict indicates the resolver could not establish or create
// a person (e.g. duplicate-login race on account creation). Callers must
// skip the record and continue their batch.
var ErrIdentityConflict = errors.New("identity conflict")

// PersonRef carries the remote identity fields the resolver matches on.
type PersonRef struct {
	MoodleID    int64
	Email       string
	DisplayName string
	Username    string
}

// IdentityResolver maps a remote (moodle id, email) pair onto the local
// shadow user and CRM account, creating either side as needed.
type IdentityResolver interface {
	ResolvePerson(ctx context.Context, ref PersonRef) (models.MoodleUser, *models.Account, error)
	EnsureShadowForAccount(ctx context.Context, account models.Account) (models.MoodleUser, error)
}

type identityService struct {
	accounts    repository.AccountRepository
	moodleUsers repository.MoodleUserRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewIdentityService builds the identity resolver.
func NewIdentityService(accounts repository.AccountRepository, moodleUsers repository.MoodleUserRepository, logger zerolog.Logger) IdentityResolver {
	return &identityService{
		accounts:    accounts,
		moodleUsers: moodleUsers,
		logger:      logger.With().Str("component", "identity_service").Logger(),
		now:         time.Now,
	}
}

// ResolvePerson matches in order: shadow user by moodle id, account by
// moodle id, account by email. An account found without a moodle id is
// claimed by stamping the id onto it. If nothing matches, a minimal account
// is created. The shadow user row is created or refreshed last.
func (s *identityService) ResolvePerson(ctx context.Context, ref PersonRef) (models.MoodleUser, *models.Account, error) {
	email := strings.TrimSpace(ref.Email)

	shadow, err := s.moodleUsers.GetByMoodleID(ctx, ref.MoodleID)
	haveShadow := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.MoodleUser{}, nil, err
	}

	var account *models.Account
	switch {
	case haveShadow && shadow.Linked():
		existing, err := s.accounts.GetByID(ctx, *shadow.AccountID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.MoodleUser{}, nil, err
		}
		if err == nil {
			account = &existing
		}
	case haveShadow:
		// Shadow exists but was never linked: retry the email match
		// against its stored address.
		account, err = s.findAccountByEmail(ctx, shadow.Email)
		if err != nil {
			return models.MoodleUser{}, nil, err
		}
	}

	if account == nil {
		account, err = s.findAccountByMoodleID(ctx, ref.MoodleID)
		if err != nil {
			return models.MoodleUser{}, nil, err
		}
	}
	if account == nil && email != "" {
		account, err = s.findAccountByEmail(ctx, email)
		if err != nil {
			return models.MoodleUser{}, nil, err
		}
	}

	if account != nil {
		if err := s.claimAccount(ctx, account, ref.MoodleID); err != nil {
			return models.MoodleUser{}, nil, err
		}
	} else {
		account, err = s.createAccount(ctx, ref)
		if err != nil {
			return models.MoodleUser{}, nil, err
		}
	}

	shadow, err = s.upsertShadow(ctx, shadow, haveShadow, ref, account)
	if err != nil {
		return models.MoodleUser{}, nil, err
	}
	return shadow, account, nil
}

// EnsureShadowForAccount is the simplified resolution used when the account
// side is already known and linked to a remote user.
func (s *identityService) EnsureShadowForAccount(ctx context.Context, account models.Account) (models.MoodleUser, error) {
	if !account.HasMoodleID() {
		return models.MoodleUser{}, fmt.Errorf("account %d has no moodle id: %w", account.ID, ErrIdentityConflict)
	}

	shadow, err := s.moodleUsers.GetByMoodleID(ctx, *account.MoodleID)
	if err == nil {
		if !shadow.Linked() {
			shadow.AccountID = &account.ID
			stamp := s.now()
			shadow.LastSyncedAt = &stamp
			if err := s.moodleUsers.Update(ctx, &shadow); err != nil {
				return models.MoodleUser{}, err
			}
		}
		return shadow, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.MoodleUser{}, err
	}

	stamp := s.now()
	shadow = models.MoodleUser{
		FullName:     account.Name,
		Login:        account.Login,
		Email:        account.Email,
		MoodleID:     *account.MoodleID,
		AccountID:    &account.ID,
		LastSyncedAt: &stamp,
	}
	if err := s.moodleUsers.Create(ctx, &shadow); err != nil {
		return models.MoodleUser{}, fmt.Errorf("create shadow user: %w: %v", ErrIdentityConflict, err)
	}
	return shadow, nil
}

func (s *identityService) findAccountByMoodleID(ctx context.Context, moodleID int64) (*models.Account, error) {
	account, err := s.accounts.GetByMoodleID(ctx, moodleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *identityService) findAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// claimAccount stamps the remote id onto an account matched by email. When
// the account already carries a different id, the link is overwritten: two
// remote identities sharing an email resolve to whichever synced last. The
// overwrite is logged since there is no guard against it.
func (s *identityService) claimAccount(ctx context.Context, account *models.Account, moodleID int64) error {
	if account.MoodleID != nil && *account.MoodleID == moodleID {
		return nil
	}
	if account.MoodleID != nil {
		s.logger.Warn().
			Uint("account_id", account.ID).
			Int64("previous_moodle_id", *account.MoodleID).
			Int64("new_moodle_id", moodleID).
			Msg("relinking account to a different remote user")
	}
	account.MoodleID = &moodleID
	return s.accounts.Update(ctx, account)
}

func (s *identityService) createAccount(ctx context.Context, ref PersonRef) (*models.Account, error) {
	login := strings.TrimSpace(ref.Username)
	if login == "" {
		login = strings.TrimSpace(ref.Email)
	}

	moodleID := ref.MoodleID
	account := models.Account{
		Name:     ref.DisplayName,
		Login:    login,
		Email:    strings.TrimSpace(ref.Email),
		MoodleID: &moodleID,
	}
	if err := s.accounts.Create(ctx, &account); err != nil {
		return nil, fmt.Errorf("create account for %s: %w: %v", login, ErrIdentityConflict, err)
	}

	s.logger.Info().Uint("account_id", account.ID).Int64("moodle_id", ref.MoodleID).Msg("account created")
	return &account, nil
}

func (s *identityService) upsertShadow(ctx context.Context, shadow models.MoodleUser, exists bool, ref PersonRef, account *models.Account) (models.MoodleUser, error) {
	stamp := s.now()

	if !exists {
		shadow = models.MoodleUser{MoodleID: ref.MoodleID}
	}
	if ref.DisplayName != "" {
		shadow.FullName = ref.DisplayName
	}
	if ref.Username != "" {
		shadow.Login = ref.Username
	} else if shadow.Login == "" {
		shadow.Login = strings.TrimSpace(ref.Email)
	}
	if email := strings.TrimSpace(ref.Email); email != "" {
		shadow.Email = email
	}
	if account != nil {
		shadow.AccountID = &account.ID
	}
	shadow.LastSyncedAt = &stamp

	if exists {
		if err := s.moodleUsers.Update(ctx, &shadow); err != nil {
			return models.MoodleUser{}, err
		}
		return shadow, nil
	}
	if err := s.moodleUsers.Create(ctx, &shadow); err != nil {
		return models.MoodleUser{}, fmt.Errorf("create shadow user: %w: %v", ErrIdentityConflict, err)
	}
	return shadow, nil
}
