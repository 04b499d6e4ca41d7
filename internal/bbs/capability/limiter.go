// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package capability implements the narrow, rate-limited facade through which
board apps reach host services: scoped key/value storage, current-user
lookup, and safe utility functions.

# Isolation

Every facade is constructed for exactly one app id. Storage keys are
prefixed with the app id (and optional namespace) on top of the column
scoping in the store, so two apps can never observe each other's keys even
through a shared index.
*/
package capability

import (
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/termboard/internal/platform/constants"
)

// # Operations

// Operation names one rate-limited facade entry point.
type Operation string

const (
	OpKVGet       Operation = "kv_get"
	OpKVSet       Operation = "kv_set"
	OpKVDelete    Operation = "kv_delete"
	OpCommand     Operation = "command_execution"
	OpCurrentUser Operation = "current_user"
)

// opQuota holds the per-minute cap and the optional 5-second burst cap.
type opQuota struct {
	perMinute int
	burst5s   int
}

// quotas is the fixed per-app rate table.
var quotas = map[Operation]opQuota{
	OpKVGet:       {perMinute: 100, burst5s: 20},
	OpKVSet:       {perMinute: 50, burst5s: 10},
	OpKVDelete:    {perMinute: 20, burst5s: 5},
	OpCommand:     {perMinute: 30},
	OpCurrentUser: {perMinute: 60},
}

// # Per-App Limiter

// Limiter enforces the per-operation quotas for one app. Counters are
// shared across sessions, so all methods are safe for concurrent use.
//
// Quotas are fixed windows anchored at the first call after expiry: the
// cap-th call in a window succeeds, the next one fails until the window
// rolls over. Sustained breach (10 consecutive denials) triggers a
// 30-second cooldown during which every operation is refused outright.
type Limiter struct {
	appID  string
	logger *slog.Logger

	mutex         sync.Mutex
	ops           map[Operation]*opLimiter
	denialStreak  int
	cooldownUntil time.Time
	lastWarn      map[Operation]time.Time
}

type opLimiter struct {
	minute *opWindow
	burst  *opWindow
}

// opWindow counts calls inside one fixed window. The count resets when a
// call arrives past the window's end.
type opWindow struct {
	cap     int
	length  time.Duration
	count   int
	resetAt time.Time
}

func (window *opWindow) allow(now time.Time) bool {
	if !now.Before(window.resetAt) {
		window.count = 0
		window.resetAt = now.Add(window.length)
	}
	if window.count >= window.cap {
		return false
	}
	window.count++
	return true
}

// NewLimiter creates the quota counters for one app.
func NewLimiter(appID string, logger *slog.Logger) *Limiter {
	ops := make(map[Operation]*opLimiter, len(quotas))
	for op, quota := range quotas {
		limiter := &opLimiter{
			minute: &opWindow{cap: quota.perMinute, length: time.Minute},
		}
		if quota.burst5s > 0 {
			limiter.burst = &opWindow{cap: quota.burst5s, length: 5 * time.Second}
		}
		ops[op] = limiter
	}

	return &Limiter{
		appID:    appID,
		logger:   logger,
		ops:      ops,
		lastWarn: map[Operation]time.Time{},
	}
}

/*
Allow reports whether one invocation of the operation may proceed,
consuming quota when it may.

Description: Both the per-minute and the burst limiter must admit the call.
A denial is logged at most once per warn window per operation; ten denials
in a row put the whole app in a 30-second cooldown.

Parameters:
  - op: Operation

Returns:
  - bool: True when the call may proceed
*/
func (limiter *Limiter) Allow(op Operation) bool {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	now := time.Now()
	if now.Before(limiter.cooldownUntil) {
		limiter.warnLocked(op, "cooldown active", now)
		return false
	}

	counters, known := limiter.ops[op]
	if !known {
		return true
	}

	allowed := counters.minute.allow(now)
	if allowed && counters.burst != nil {
		allowed = counters.burst.allow(now)
	}

	if allowed {
		limiter.denialStreak = 0
		return true
	}

	limiter.denialStreak++
	if limiter.denialStreak >= constants.AppRateSustainedBreaches {
		limiter.cooldownUntil = now.Add(constants.AppRateCooldown)
		limiter.denialStreak = 0
		limiter.logger.Warn("app entered rate-limit cooldown",
			slog.String("app_id", limiter.appID),
			slog.Duration("cooldown", constants.AppRateCooldown),
		)
	}

	limiter.warnLocked(op, "quota exceeded", now)
	return false
}

// InCooldown reports whether the app is currently refused outright.
func (limiter *Limiter) InCooldown() bool {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	return time.Now().Before(limiter.cooldownUntil)
}

// warnLocked logs a quota breach at most once per warn window per operation.
func (limiter *Limiter) warnLocked(op Operation, reason string, now time.Time) {
	if now.Sub(limiter.lastWarn[op]) < constants.AppRateWarnInterval {
		return
	}
	limiter.lastWarn[op] = now

	limiter.logger.Warn("app operation rate limited",
		slog.String("app_id", limiter.appID),
		slog.String("operation", string(op)),
		slog.String("reason", reason),
	)
}
