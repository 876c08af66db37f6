package adplatform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// TokenStore 持久化用户的平台令牌
type TokenStore interface {
	LoadToken(ctx context.Context, userID string) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userID string, tok *oauth2.Token) error
}

// tokenManager keeps one refreshing token source per user.
type tokenManager struct {
	oauth      *oauth2.Config
	store      TokenStore
	httpClient *http.Client
	sources    *cache.Cache
	logger     *logrus.Logger
}

func newTokenManager(cfg *Config, store TokenStore, httpClient *http.Client, logger *logrus.Logger) *tokenManager {
	ttl := cfg.TokenCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &tokenManager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
		store:      store,
		httpClient: httpClient,
		sources:    cache.New(ttl, 2*ttl),
		logger:     logger,
	}
}

func (m *tokenManager) accessToken(ctx context.Context, userID string) (string, error) {
	if m.store == nil {
		return "", errors.New("token store is not configured")
	}
	src, err := m.source(ctx, userID)
	if err != nil {
		return "", err
	}
	tok, err := src.Token()
	if err != nil {
		// 刷新失败时丢弃缓存，下次重新从存储加载
		m.sources.Delete(userID)
		return "", fmt.Errorf("refresh token for user %s: %w", userID, err)
	}
	return tok.AccessToken, nil
}

func (m *tokenManager) source(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	if cached, ok := m.sources.Get(userID); ok {
		return cached.(oauth2.TokenSource), nil
	}
	tok, err := m.store.LoadToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load token for user %s: %w", userID, err)
	}
	// refresh 请求走同一个（可观测、可 mock 的）http.Client
	refreshCtx := context.WithValue(context.Background(), oauth2.HTTPClient, m.httpClient)
	src := &persistingSource{
		base:   oauth2.ReuseTokenSource(tok, m.oauth.TokenSource(refreshCtx, tok)),
		userID: userID,
		store:  m.store,
		last:   tok.AccessToken,
		logger: m.logger,
	}
	m.sources.SetDefault(userID, src)
	return src, nil
}

// persistingSource writes refreshed tokens back to the store.
type persistingSource struct {
	base   oauth2.TokenSource
	userID string
	store  TokenStore
	logger *logrus.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.SaveToken(ctx, s.userID, tok); err != nil {
			s.logger.Warnf("adplatform: persist refreshed token for user %s failed: %v", s.userID, err)
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}
