package repository

import (
	"context"
	"errors"
	"fmt"

	"adpilot/internal/models"

	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenStore 持久化广告平台 OAuth 令牌
type TokenStore struct {
	db *gorm.DB
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

// LoadToken returns ErrTokenNotFound when the user never connected the platform.
func (s *TokenStore) LoadToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	var row models.PlatformToken
	if err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to load token of user %s: %w", userID, err)
	}
	return &oauth2.Token{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		Expiry:       row.ExpiresAt,
		TokenType:    "Bearer",
	}, nil
}

// SaveToken upserts the user's token after a refresh.
func (s *TokenStore) SaveToken(ctx context.Context, userID string, tok *oauth2.Token) error {
	row := models.PlatformToken{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save token of user %s: %w", userID, err)
	}
	return nil
}
