package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"adpilot/internal/config"
	"adpilot/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		flagUserID, flagPlan, flagTTLMin, flagNoExpiry = "", "free", 60, false
		flagPlanUser, flagPlanName = "", ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: "+Version)
	assert.Contains(t, out, "Commit: "+Commit)
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--user", "u-1", "--plan", "pro", "--ttl", "5")
	require.NoError(t, err)

	claims, err := middleware.ParseToken(config.GetDefaultConfig().Security.JWT, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "pro", claims.Plan)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "token", "--plan", "pro")
	assert.ErrorContains(t, err, "--user is required")

	_, err = execute(t, "token", "--user", "u-1", "--plan", "enterprise")
	assert.ErrorContains(t, err, "unknown plan")
}

func TestPlatformConfig(t *testing.T) {
	c := config.GetDefaultConfig().AdPlatform
	c.BaseURL = "http://platform.test"
	c.ClientID = "id"
	c.CircuitBreaker.MaxFailures = 9

	pc := platformConfig(c)
	assert.Equal(t, "http://platform.test", pc.BaseURL)
	assert.Equal(t, c.TokenURL, pc.TokenURL)
	assert.Equal(t, "id", pc.ClientID)
	assert.Equal(t, c.RequestsPerSecond, pc.RequestsPerSecond)
	assert.True(t, pc.Breaker.Enabled)
	assert.Equal(t, 9, pc.Breaker.MaxFailures)

	empty := platformConfig(config.AdPlatformConfig{})
	assert.NotEmpty(t, empty.BaseURL)
	assert.Greater(t, empty.Timeout, time.Duration(0))
}

func TestPlanCommandRequiresUser(t *testing.T) {
	_, err := execute(t, "plan", "--plan", "free")
	assert.ErrorContains(t, err, "--user is required")
}
