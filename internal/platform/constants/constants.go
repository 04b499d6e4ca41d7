// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, sandbox quotas, and cross-cutting keys
that are shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Session Rules: History cap, default area, reaping cutoff.
  - App Bounds: String length limits applied to every BBS app.
  - Sandbox Quotas: Wall clock, CPU, and memory budgets for remote apps.
  - App Rate Limits: Per-operation caps enforced by the capability facade.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "termboard-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	// It must sit comfortably above the sandbox wall-clock budget so that a
	// slow remote app surfaces as a sandbox rejection, not a transport timeout.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # HTTP Rate Limiting (per client IP)

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Session Rules

const (
	// AreaMain is the default conversational area of every session.
	AreaMain = "main"

	// CommandHistoryCap is the maximum retained history length per session.
	// Older entries are dropped oldest-first.
	CommandHistoryCap = 100

	// CommandMaxLength is the truncation bound applied to raw command input
	// before it reaches an app.
	CommandMaxLength = 1000

	// SessionReapAfterDays is the default inactivity cutoff for the reaper.
	SessionReapAfterDays = 30
)

// # App Contract Bounds

const (
	// AppIDMaxLength bounds the app identifier.
	AppIDMaxLength = 50

	// AppNameMaxLength bounds the app display name.
	AppNameMaxLength = 100

	// AppDescriptionMaxLength bounds the app description.
	AppDescriptionMaxLength = 500

	// ScreenTextMaxLength bounds welcome screens, help texts, and command
	// responses. Anything longer is truncated at the wrapper boundary.
	ScreenTextMaxLength = 10000
)

// # Sandbox Quotas

const (
	// SandboxMemoryLimitMiB is the memory ceiling granted to a remote app.
	SandboxMemoryLimitMiB = 128

	// SandboxWallClockTimeout limits load time and every subsequent call.
	SandboxWallClockTimeout = 5 * time.Second

	// SandboxCPUTimeout is the CPU budget per sandboxed call.
	SandboxCPUTimeout = 3 * time.Second

	// SandboxSourceMaxBytes is the maximum accepted size of a remote main file.
	SandboxSourceMaxBytes = 1 << 20 // 1 MiB

	// SandboxSourceMaxLines rejects absurdly long scripts before parsing.
	SandboxSourceMaxLines = 10000

	// SandboxMaxBraceNesting rejects pathological nesting before parsing.
	SandboxMaxBraceNesting = 1000

	// SandboxMaxFunctionParams bounds parameters per function declaration.
	SandboxMaxFunctionParams = 20

	// SandboxMaxFunctionDepth bounds function nesting depth.
	SandboxMaxFunctionDepth = 20

	// SandboxMaxFunctionCount bounds function declarations per script.
	SandboxMaxFunctionCount = 200

	// SandboxTimerMinDelay is the floor applied to wrapped setTimeout delays.
	SandboxTimerMinDelay = 100 * time.Millisecond

	// SandboxTimerMaxDelay is the ceiling applied to wrapped setTimeout delays.
	SandboxTimerMaxDelay = 30 * time.Second

	// SandboxTimerMaxConcurrent limits live timers per app.
	SandboxTimerMaxConcurrent = 10

	// RemoteInstallCacheTTL is how long a remote install is served from cache.
	RemoteInstallCacheTTL = 1 * time.Hour
)

// # App Operation Rate Limits

const (
	// AppRateWarnInterval throttles quota-breach log warnings to one per window.
	AppRateWarnInterval = 1 * time.Minute

	// AppRateCooldown is applied after a sustained quota breach.
	AppRateCooldown = 30 * time.Second

	// AppRateSustainedBreaches is the consecutive-denial count that counts
	// as a sustained breach and triggers the cooldown.
	AppRateSustainedBreaches = 10
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldError   = "error"
	FieldCode    = "code"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldSuccess = "success"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixRemoteSource = "bbs:remote_source:"
	RedisPrefixAppCooldown  = "bbs:app_cooldown:"
)
