// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/termboard/internal/bbs/app"
	"github.com/taibuivan/termboard/internal/keyvalue"
	"github.com/taibuivan/termboard/internal/users/auth"
)

// # Errors

var (
	// ErrRefused is returned when a facade operation is denied by quota.
	ErrRefused = errors.New("operation refused: rate limit exceeded")

	// ErrCodeLikeValue is returned when a stored value looks like code.
	ErrCodeLikeValue = errors.New("value rejected: code-like content is not storable")
)

// codeMarkers are the substrings that flag a string value as code-like.
var codeMarkers = []string{"function", "=>", "eval", "new Function"}

// UserResolver resolves a user id to its public view. The auth service
// satisfies this.
type UserResolver interface {
	PublicUser(ctx context.Context, userID string) (*auth.PublicView, error)
}

// # Facade Factory

// Factory builds per-app facades over shared infrastructure. Limiters are
// cached per app id so quota counters persist across facade construction.
type Factory struct {
	kv     keyvalue.Repository
	users  UserResolver
	logger *slog.Logger

	mutex    sync.Mutex
	limiters map[string]*Limiter
}

// NewFactory wires the capability factory.
func NewFactory(kv keyvalue.Repository, users UserResolver, logger *slog.Logger) *Factory {
	return &Factory{
		kv:       kv,
		users:    users,
		logger:   logger,
		limiters: map[string]*Limiter{},
	}
}

// For returns the capability facade scoped to one app id.
func (factory *Factory) For(appID string) app.Capabilities {
	return &Facade{
		appID:   appID,
		kv:      factory.kv,
		users:   factory.users,
		limiter: factory.LimiterFor(appID),
		logger:  factory.logger,
	}
}

// LimiterFor returns the shared quota counters for one app id, creating
// them on first use.
func (factory *Factory) LimiterFor(appID string) *Limiter {
	factory.mutex.Lock()
	defer factory.mutex.Unlock()

	limiter, found := factory.limiters[appID]
	if !found {
		limiter = NewLimiter(appID, factory.logger)
		factory.limiters[appID] = limiter
	}
	return limiter
}

// Forget drops the cached limiter for an app, used at uninstall.
func (factory *Factory) Forget(appID string) {
	factory.mutex.Lock()
	defer factory.mutex.Unlock()

	delete(factory.limiters, appID)
}

// # The Facade

// Facade implements [app.Capabilities] for exactly one app id.
type Facade struct {
	appID   string
	kv      keyvalue.Repository
	users   UserResolver
	limiter *Limiter
	logger  *slog.Logger
}

// AppID returns the id of the app this facade is scoped to.
func (facade *Facade) AppID() string { return facade.appID }

// Storage returns the app-scoped shared storage.
func (facade *Facade) Storage() app.Storage {
	return &scopedStorage{facade: facade}
}

// UserStorage returns storage additionally scoped to one user. The user id
// is sanitized before it becomes part of the scope.
func (facade *Facade) UserStorage(userID string) app.Storage {
	return &scopedStorage{facade: facade, userID: app.SanitizeIdentifier(userID)}
}

// NamespacedStorage returns storage under a named sub-namespace.
func (facade *Facade) NamespacedStorage(namespace string) app.Storage {
	return &scopedStorage{facade: facade, namespace: app.SanitizeIdentifier(namespace)}
}

/*
CurrentUser resolves the viewed session's bound user to its public view.

Description: Anonymous sessions yield nil without error. The lookup is
rate-limited; a breach is a refusal, not a silent nil, so apps can tell
"nobody is logged in" apart from "slow down".

Parameters:
  - ctx: context.Context
  - view: app.SessionView

Returns:
  - *app.UserView: Public projection, nil for anonymous sessions
  - error: ErrRefused on quota breach, or lookup failures
*/
func (facade *Facade) CurrentUser(ctx context.Context, view app.SessionView) (*app.UserView, error) {
	if !facade.limiter.Allow(OpCurrentUser) {
		return nil, ErrRefused
	}

	if !view.IsAuthenticated() {
		return nil, nil
	}

	public, err := facade.users.PublicUser(ctx, view.UserID)
	if err != nil {
		return nil, err
	}

	return &app.UserView{
		ID:          public.ID,
		Username:    public.Username,
		DisplayName: public.DisplayName,
		Role:        public.Role,
		JoinDate:    public.JoinDate,
		LastLogin:   public.LastLogin,
	}, nil
}

// Utils returns the pure helper surface.
func (facade *Facade) Utils() app.Utils {
	return boardUtils{}
}

// # Scoped Storage

// scopedStorage routes storage calls through the key/value store with the
// facade's app id, the sanitized user/namespace qualifiers, and the
// collision-proof key prefix.
type scopedStorage struct {
	facade    *Facade
	userID    string
	namespace string
}

// Get returns the value under key; quota breaches report absent.
func (storage *scopedStorage) Get(ctx context.Context, key string) (any, bool, error) {
	if !storage.facade.limiter.Allow(OpKVGet) {
		return nil, false, nil
	}
	return storage.facade.kv.Get(ctx, storage.scope(key))
}

// Set upserts the value under key; quota breaches refuse the write.
func (storage *scopedStorage) Set(ctx context.Context, key string, value any) error {
	return storage.set(ctx, key, value, nil)
}

// SetWithExpiry upserts with a best-effort expiry stamp.
func (storage *scopedStorage) SetWithExpiry(ctx context.Context, key string, value any, expiresAt time.Time) error {
	return storage.set(ctx, key, value, &expiresAt)
}

func (storage *scopedStorage) set(ctx context.Context, key string, value any, expiresAt *time.Time) error {
	if !storage.facade.limiter.Allow(OpKVSet) {
		return ErrRefused
	}
	if err := rejectCodeLike(value); err != nil {
		return err
	}
	return storage.facade.kv.Set(ctx, storage.scope(key), value, expiresAt)
}

// Delete removes the value under key; quota breaches refuse the delete.
func (storage *scopedStorage) Delete(ctx context.Context, key string) (bool, error) {
	if !storage.facade.limiter.Allow(OpKVDelete) {
		return false, ErrRefused
	}
	return storage.facade.kv.Delete(ctx, storage.scope(key))
}

// Keys lists this scope's keys with the app prefix stripped back off.
func (storage *scopedStorage) Keys(ctx context.Context) ([]string, error) {
	if !storage.facade.limiter.Allow(OpKVGet) {
		return nil, ErrRefused
	}

	prefixed, err := storage.facade.kv.Keys(ctx, storage.facade.appID, storage.userID, storage.namespace)
	if err != nil {
		return nil, err
	}

	prefix := storage.prefix()
	keys := make([]string, 0, len(prefixed))
	for _, key := range prefixed {
		keys = append(keys, strings.TrimPrefix(key, prefix))
	}
	return keys, nil
}

// scope builds the store scope for one key, applying the prefix rule.
func (storage *scopedStorage) scope(key string) keyvalue.Scope {
	return keyvalue.Scope{
		AppID:     storage.facade.appID,
		Key:       storage.prefix() + key,
		UserID:    storage.userID,
		Namespace: storage.namespace,
	}
}

// prefix is "app_<appId>_" plus "<namespace>_" when namespaced.
func (storage *scopedStorage) prefix() string {
	prefix := fmt.Sprintf("app_%s_", storage.facade.appID)
	if storage.namespace != "" {
		prefix += storage.namespace + "_"
	}
	return prefix
}

// # Value Screening

// rejectCodeLike refuses function-typed values and strings carrying
// code-like markers, recursively through maps and slices.
func rejectCodeLike(value any) error {
	switch typed := value.(type) {
	case nil:
		return nil
	case string:
		for _, marker := range codeMarkers {
			if strings.Contains(typed, marker) {
				return ErrCodeLikeValue
			}
		}
		return nil
	case map[string]any:
		for _, nested := range typed {
			if err := rejectCodeLike(nested); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, nested := range typed {
			if err := rejectCodeLike(nested); err != nil {
				return err
			}
		}
		return nil
	default:
		if reflect.ValueOf(value).Kind() == reflect.Func {
			return ErrCodeLikeValue
		}
		return nil
	}
}
