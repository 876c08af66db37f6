package services

import (
	"context"
	"errors"
	"time"

	"adpilot/internal/models"
	"adpilot/internal/repository"

	"github.com/sirupsen/logrus"
)

// ActionLogService 审计记录查询与撤销
type ActionLogService struct {
	logs     ActionLogStore
	reverter *Reverter
	platform AdPlatform
	logger   *logrus.Logger
}

// NewActionLogService 创建审计记录服务；platform 为空时撤销不恢复广告
func NewActionLogService(logs ActionLogStore, reverter *Reverter, platform AdPlatform, logger *logrus.Logger) *ActionLogService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ActionLogService{logs: logs, reverter: reverter, platform: platform, logger: logger}
}

// List returns one page of the user's logs.
func (s *ActionLogService) List(ctx context.Context, filter repository.ActionLogFilter) ([]models.ActionLog, int64, error) {
	return s.logs.ListActionLogs(ctx, filter)
}

// Get returns repository.ErrActionLogNotFound for logs owned by someone else.
func (s *ActionLogService) Get(ctx context.Context, userID, id string) (*models.ActionLog, error) {
	entry, err := s.logs.GetActionLog(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, repository.ErrActionLogNotFound
	}
	return entry, nil
}

// Undo reverts the user's own action log and, when that succeeds, resumes the ad.
// A failed resume is logged; the revert stands.
func (s *ActionLogService) Undo(ctx context.Context, userID, id string, now time.Time) RevertResult {
	entry, err := s.Get(ctx, userID, id)
	if err != nil {
		if !errors.Is(err, repository.ErrActionLogNotFound) {
			s.logger.WithField("action_log_id", id).Errorf("undo: load action log failed: %v", err)
			return RevertResult{Reason: RevertStoreError}
		}
		return RevertResult{Reason: RevertNotFound}
	}

	res := s.reverter.Revert(ctx, id, userID, now)
	if !res.Success || s.platform == nil {
		return res
	}

	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "ad_id": entry.AdID, "action_log_id": id})
	token, err := s.platform.GetValidAccessToken(ctx, userID)
	if err != nil {
		log.Warnf("undo: get access token failed, ad stays stopped: %v", err)
		return res
	}
	if err := s.platform.ResumeAd(ctx, token, entry.AdID, entry.AccountID); err != nil {
		log.Warnf("undo: resume ad failed: %v", err)
		return res
	}
	log.Info("undo: ad resumed")
	return res
}

// AccountService 账户操作
type AccountService struct {
	accounts AccountManager
	logs     ActionLogStore
	logger   *logrus.Logger
}

// NewAccountService 创建账户服务
func NewAccountService(accounts AccountManager, logs ActionLogStore, logger *logrus.Logger) *AccountService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AccountService{accounts: accounts, logs: logs, logger: logger}
}

// DisconnectAccount marks the account disconnected and deletes its action logs.
func (s *AccountService) DisconnectAccount(ctx context.Context, userID, accountID string) (int64, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if account.UserID != userID {
		return 0, repository.ErrAccountNotFound
	}
	if err := s.accounts.UpdateAccountStatus(ctx, accountID, models.AccountStatusDisconnected); err != nil {
		return 0, err
	}
	deleted, err := s.logs.DeleteActionLogsByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "account_id": accountID, "deleted_logs": deleted}).Info("account disconnected")
	return deleted, nil
}
