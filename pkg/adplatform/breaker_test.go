package adplatform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_Transitions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{Enabled: true, MaxFailures: 2, ResetTimeout: time.Minute, HalfOpenMaxReqs: 1})
	b.now = func() time.Time { return now }

	assert.True(t, b.Allow())
	b.OnFailure()
	assert.Equal(t, BreakerClosed, b.State())
	b.OnFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())

	now = now.Add(time.Minute)
	assert.True(t, b.Allow(), "probe after reset timeout")
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.False(t, b.Allow(), "only one probe in half-open")

	b.OnFailure()
	assert.Equal(t, BreakerOpen, b.State())

	now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow())
	b.OnSuccess()
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_Disabled(t *testing.T) {
	b := NewBreaker(BreakerConfig{Enabled: false, MaxFailures: 1})
	b.OnFailure()
	b.OnFailure()
	assert.True(t, b.Allow())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}

func TestBreaker_OnAbortReleasesProbe(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{Enabled: true, MaxFailures: 1, ResetTimeout: time.Minute, HalfOpenMaxReqs: 1})
	b.now = func() time.Time { return now }

	b.OnFailure()
	now = now.Add(time.Minute)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	b.OnAbort()
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.True(t, b.Allow(), "released slot can be taken again")
}
