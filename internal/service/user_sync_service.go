package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/digilearn/moodle-sync-api/internal/dto"
	"github.com/digilearn/moodle-sync-api/internal/models"
	"github.com/digilearn/moodle-sync-api/internal/repository"
	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

// UserSyncService reconciles the full remote user directory against local
// accounts and shadow users. Lookups are preloaded for the whole batch and
// creations are batched, so the pipeline does constant queries regardless
// of directory size.
type UserSyncService interface {
	SyncUsers(ctx context.Context) (dto.UserSyncResult, error)
}

type userSyncService struct {
	api         MoodleAPI
	accounts    repository.AccountRepository
	moodleUsers repository.MoodleUserRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewUserSyncService builds the user sync pipeline.
func NewUserSyncService(api MoodleAPI, accounts repository.AccountRepository, moodleUsers repository.MoodleUserRepository, logger zerolog.Logger) UserSyncService {
	return &userSyncService{
		api:         api,
		accounts:    accounts,
		moodleUsers: moodleUsers,
		logger:      logger.With().Str("component", "user_sync_service").Logger(),
		now:         time.Now,
	}
}

// pendingShadow defers shadow creation until the account side of the batch
// has been written, since the link needs the account's generated id.
type pendingShadow struct {
	remote  moodle.RemoteUser
	account *models.Account
}

func (s *userSyncService) SyncUsers(ctx context.Context) (dto.UserSyncResult, error) {
	remote, err := s.api.GetUsers(ctx)
	if err != nil {
		return dto.UserSyncResult{}, err
	}

	result := dto.UserSyncResult{}

	valid := make([]moodle.RemoteUser, 0, len(remote))
	moodleIDs := make([]int64, 0, len(remote))
	emails := make([]string, 0, len(remote))
	for _, ru := range remote {
		if ru.ID <= 0 || strings.TrimSpace(ru.Email) == "" {
			s.logger.Warn().Int64("moodle_id", ru.ID).Str("fullname", ru.FullName).
				Msg("remote user missing id or email, skipping")
			result.Skipped++
			continue
		}
		valid = append(valid, ru)
		moodleIDs = append(moodleIDs, ru.ID)
		emails = append(emails, ru.Email)
	}
	if len(valid) == 0 {
		return result, nil
	}

	accountsByMoodleID, accountsByEmail, err := s.preloadAccounts(ctx, moodleIDs, emails)
	if err != nil {
		return dto.UserSyncResult{}, err
	}
	shadowsByMoodleID, err := s.preloadShadows(ctx, moodleIDs)
	if err != nil {
		return dto.UserSyncResult{}, err
	}

	stamp := s.now()
	var newAccounts []*models.Account
	var pendingNew []pendingShadow

	for _, ru := range valid {
		email := strings.TrimSpace(ru.Email)
		shadow, hasShadow := shadowsByMoodleID[ru.ID]

		account := accountsByMoodleID[ru.ID]
		if account == nil {
			account = accountsByEmail[strings.ToLower(email)]
		}

		switch {
		case account != nil:
			if err := s.refreshAccount(ctx, account, ru); err != nil {
				s.logger.Error().Err(err).Int64("moodle_id", ru.ID).Msg("account update failed, skipping user")
				result.IdentityConflicts++
				continue
			}
			result.AccountsUpdated++
		case hasShadow && shadow.Linked():
			// Account already linked through the shadow; nothing to
			// refresh on that side in bulk mode.
		default:
			moodleID := ru.ID
			login := strings.TrimSpace(ru.Username)
			if login == "" {
				login = email
			}
			account = &models.Account{
				Name:     ru.FullName,
				Login:    login,
				Email:    email,
				MoodleID: &moodleID,
			}
			newAccounts = append(newAccounts, account)
		}

		if hasShadow {
			shadow.FullName = ru.FullName
			if ru.Username != "" {
				shadow.Login = ru.Username
			}
			shadow.Email = email
			if account != nil && account.ID != 0 {
				shadow.AccountID = &account.ID
			}
			shadow.LastSyncedAt = &stamp
			if err := s.moodleUsers.Update(ctx, &shadow); err != nil {
				s.logger.Error().Err(err).Int64("moodle_id", ru.ID).Msg("shadow user update failed, skipping")
				result.IdentityConflicts++
				continue
			}
			result.ShadowsUpdated++
			continue
		}

		pendingNew = append(pendingNew, pendingShadow{remote: ru, account: account})
	}

	accountOutcome := applyBatch(ctx, s.logger, "account", newAccounts, s.accounts.CreateBatch, s.accounts.Create)
	result.AccountsCreated = accountOutcome.Applied
	result.IdentityConflicts += accountOutcome.Failed

	newShadows := make([]*models.MoodleUser, 0, len(pendingNew))
	for _, pending := range pendingNew {
		ru := pending.remote
		// A failed account create leaves ID at zero; that record's
		// dependent shadow write is skipped, not aborted.
		if pending.account != nil && pending.account.ID == 0 {
			s.logger.Warn().Int64("moodle_id", ru.ID).Msg("account creation failed, skipping shadow user")
			continue
		}

		login := strings.TrimSpace(ru.Username)
		if login == "" {
			login = strings.TrimSpace(ru.Email)
		}
		shadow := &models.MoodleUser{
			FullName:     ru.FullName,
			Login:        login,
			Email:        strings.TrimSpace(ru.Email),
			MoodleID:     ru.ID,
			LastSyncedAt: &stamp,
		}
		if pending.account != nil {
			shadow.AccountID = &pending.account.ID
		}
		newShadows = append(newShadows, shadow)
	}

	shadowOutcome := applyBatch(ctx, s.logger, "moodle_user", newShadows, s.moodleUsers.CreateBatch, s.moodleUsers.Create)
	result.ShadowsCreated = shadowOutcome.Applied
	result.IdentityConflicts += shadowOutcome.Failed

	s.logger.Info().
		Int("accounts_created", result.AccountsCreated).
		Int("accounts_updated", result.AccountsUpdated).
		Int("shadows_created", result.ShadowsCreated).
		Int("shadows_updated", result.ShadowsUpdated).
		Int("skipped", result.Skipped).
		Int("identity_conflicts", result.IdentityConflicts).
		Msg("user sync completed")
	return result, nil
}

func (s *userSyncService) preloadAccounts(ctx context.Context, moodleIDs []int64, emails []string) (map[int64]*models.Account, map[string]*models.Account, error) {
	accounts, err := s.accounts.ListByMoodleIDsOrEmails(ctx, moodleIDs, emails)
	if err != nil {
		return nil, nil, err
	}

	byMoodleID := make(map[int64]*models.Account, len(accounts))
	byEmail := make(map[string]*models.Account, len(accounts))
	for i := range accounts {
		account := &accounts[i]
		if account.MoodleID != nil {
			byMoodleID[*account.MoodleID] = account
		}
		if account.Email != "" {
			byEmail[strings.ToLower(strings.TrimSpace(account.Email))] = account
		}
	}
	return byMoodleID, byEmail, nil
}

func (s *userSyncService) preloadShadows(ctx context.Context, moodleIDs []int64) (map[int64]models.MoodleUser, error) {
	shadows, err := s.moodleUsers.ListByMoodleIDs(ctx, moodleIDs)
	if err != nil {
		return nil, err
	}
	byMoodleID := make(map[int64]models.MoodleUser, len(shadows))
	for _, shadow := range shadows {
		byMoodleID[shadow.MoodleID] = shadow
	}
	return byMoodleID, nil
}

// refreshAccount applies the remote naming onto a matched account and
// claims it when it is not yet linked. An email match holding a different
// moodle id gets relinked; there is no guard against two remote identities
// sharing an address, so the overwrite is logged.
func (s *userSyncService) refreshAccount(ctx context.Context, account *models.Account, ru moodle.RemoteUser) error {
	if account.MoodleID != nil && *account.MoodleID != ru.ID {
		s.logger.Warn().
			Uint("account_id", account.ID).
			Int64("previous_moodle_id", *account.MoodleID).
			Int64("new_moodle_id", ru.ID).
			Msg("relinking account to a different remote user")
	}

	moodleID := ru.ID
	account.MoodleID = &moodleID
	if ru.FullName != "" {
		account.Name = ru.FullName
	}
	if ru.Username != "" {
		account.Login = ru.Username
	}
	return s.accounts.Update(ctx, account)
}
