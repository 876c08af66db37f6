package adplatform

import (
	"sync"
	"time"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 正常
	BreakerOpen                         // 熔断
	BreakerHalfOpen                     // 试探
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Enabled         bool
	MaxFailures     int
	ResetTimeout    time.Duration
	HalfOpenMaxReqs int
}

// Breaker protects the ad platform from being hammered while it is failing.
type Breaker struct {
	cfg          BreakerConfig
	state        BreakerState
	failures     int
	lastFailure  time.Time
	halfOpenReqs int
	now          func() time.Time
	mu           sync.Mutex
}

// NewBreaker 创建熔断器
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = time.Minute
	}
	if cfg.HalfOpenMaxReqs <= 0 {
		cfg.HalfOpenMaxReqs = 1
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a request may go out. A disabled breaker always allows.
func (b *Breaker) Allow() bool {
	if !b.cfg.Enabled {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			return false
		}
		b.state = BreakerHalfOpen
		b.halfOpenReqs = 1
		return true
	case BreakerHalfOpen:
		if b.halfOpenReqs >= b.cfg.HalfOpenMaxReqs {
			return false
		}
		b.halfOpenReqs++
		return true
	default:
		return true
	}
}

// OnSuccess closes the breaker.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.halfOpenReqs = 0
}

// OnFailure counts a failure; a failed probe reopens immediately.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.halfOpenReqs = 0
	case BreakerClosed:
		if b.failures >= b.cfg.MaxFailures {
			b.state = BreakerOpen
		}
	}
}

// OnAbort releases a probe slot taken by Allow for a request that never reached the platform.
func (b *Breaker) OnAbort() {
	if !b.cfg.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen && b.halfOpenReqs > 0 {
		b.halfOpenReqs--
	}
}

// State 当前状态
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
