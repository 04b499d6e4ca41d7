// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/taibuivan/termboard/internal/bbs/app"
	"github.com/taibuivan/termboard/internal/platform/apperr"
)

// # Extraction

/*
Extract reads the module's default export out of the isolate and fronts it
with a host-side [app.BBSApp] proxy.

Description: The export must carry getWelcomeScreen, handleCommand, and
getHelp functions (snake_case aliases are accepted). Descriptive metadata
falls back from the export to the manifest to the repository name; the id
is always the synthesized one, never author-chosen. The proxy keeps the
isolate alive; disposing the isolate kills the app.

Parameters:
  - isolate: *Isolate (script already run)
  - source: Source
  - manifest: *Manifest (may be nil)

Returns:
  - app.BBSApp: The proxied app
  - error: apperr.SandboxRejected when the export violates the contract
*/
func Extract(isolate *Isolate, source Source, manifest *Manifest) (app.BBSApp, error) {
	return ExtractWithMeta(isolate, app.Meta{
		ID:      source.AppID(),
		Name:    source.Repo,
		Version: "0.0.0",
		Author:  source.Owner,
		Source:  source.URL,
	}, manifest)
}

// ExtractWithMeta is Extract with caller-chosen identity defaults. The
// local loader uses it: local apps get ids derived from their directory
// name, not from a repository address. The ID default is final either
// way; only descriptive fields may be overridden by manifest or export.
func ExtractWithMeta(isolate *Isolate, defaults app.Meta, manifest *Manifest) (app.BBSApp, error) {
	proxy := &remoteApp{isolate: isolate}

	_, err := isolate.Enter(func(vm *goja.Runtime) (goja.Value, error) {
		module := vm.Get("module")
		if module == nil || goja.IsUndefined(module) {
			return nil, fmt.Errorf("script removed the module object")
		}
		exports := module.ToObject(vm).Get("exports")
		if exports == nil || goja.IsUndefined(exports) || goja.IsNull(exports) {
			return nil, fmt.Errorf("script exports nothing")
		}
		object := exports.ToObject(vm)
		proxy.exports = object

		var missing []string
		proxy.welcomeFn = exportedFunc(object, "getWelcomeScreen", "get_welcome_screen")
		if proxy.welcomeFn == nil {
			missing = append(missing, "getWelcomeScreen")
		}
		proxy.handleFn = exportedFunc(object, "handleCommand", "handle_command")
		if proxy.handleFn == nil {
			missing = append(missing, "handleCommand")
		}
		proxy.helpFn = exportedFunc(object, "getHelp", "get_help")
		if proxy.helpFn == nil {
			missing = append(missing, "getHelp")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("export is missing %s", strings.Join(missing, ", "))
		}

		proxy.initFn = exportedFunc(object, "onInit", "on_init")
		proxy.enterFn = exportedFunc(object, "onUserEnter", "on_user_enter")
		proxy.exitFn = exportedFunc(object, "onUserExit", "on_user_exit")

		proxy.meta = buildMeta(object, defaults, manifest)
		return nil, nil
	})
	if err != nil {
		return nil, apperr.SandboxRejected(fmt.Sprintf("contract extraction failed: %v", err))
	}

	return proxy, nil
}

// buildMeta resolves descriptive metadata with export > manifest > defaults
// precedence. Must run inside an isolate entry.
func buildMeta(exports *goja.Object, meta app.Meta, manifest *Manifest) app.Meta {
	if manifest != nil {
		applyIfSet(&meta.Name, manifest.Name)
		applyIfSet(&meta.Version, manifest.Version)
		applyIfSet(&meta.Description, manifest.Description)
		applyIfSet(&meta.Author, manifest.Author)
	}

	applyIfSet(&meta.Name, exportedString(exports, "name"))
	applyIfSet(&meta.Version, exportedString(exports, "version"))
	applyIfSet(&meta.Description, exportedString(exports, "description"))
	applyIfSet(&meta.Author, exportedString(exports, "author"))

	return meta
}

func applyIfSet(target *string, value string) {
	if strings.TrimSpace(value) != "" {
		*target = value
	}
}

func exportedString(object *goja.Object, name string) string {
	value := object.Get(name)
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return ""
	}
	text, ok := value.Export().(string)
	if !ok {
		return ""
	}
	return text
}

func exportedFunc(object *goja.Object, names ...string) goja.Callable {
	for _, name := range names {
		if fn, ok := goja.AssertFunction(object.Get(name)); ok {
			return fn
		}
	}
	return nil
}

// # The Remote App Proxy

// remoteApp fronts an in-isolate export as a host [app.BBSApp].
type remoteApp struct {
	isolate *Isolate
	exports *goja.Object
	meta    app.Meta

	welcomeFn goja.Callable
	handleFn  goja.Callable
	helpFn    goja.Callable
	initFn    goja.Callable
	enterFn   goja.Callable
	exitFn    goja.Callable

	caps app.Capabilities
}

func (remote *remoteApp) Meta() app.Meta { return remote.meta }

// WelcomeScreen calls into the isolate; failures render as an in-app error
// line rather than breaking the host.
func (remote *remoteApp) WelcomeScreen() string {
	text, err := remote.callForString(remote.welcomeFn)
	if err != nil {
		return "(app failed to render its welcome screen)"
	}
	return text
}

// Help calls the app's getHelp with the current screen id (or null).
func (remote *remoteApp) Help(screenID *string) string {
	var text string
	_, err := remote.isolate.Enter(func(vm *goja.Runtime) (goja.Value, error) {
		value, err := remote.helpFn(remote.exports, nullableString(vm, screenID))
		if err != nil {
			return nil, err
		}
		text, _ = value.Export().(string)
		return nil, nil
	})
	if err != nil {
		return "(app failed to render help)"
	}
	return text
}

// HandleCommand forwards one command line into the isolate and converts
// the result back into the host contract shape.
func (remote *remoteApp) HandleCommand(_ context.Context, screenID *string, command string, view app.SessionView) (app.CommandResult, error) {
	var result app.CommandResult

	_, err := remote.isolate.Enter(func(vm *goja.Runtime) (goja.Value, error) {
		value, err := remote.handleFn(remote.exports,
			nullableString(vm, screenID),
			vm.ToValue(command),
			sessionViewValue(vm, view),
		)
		if err != nil {
			return nil, err
		}
		result, err = resultFromValue(value)
		return nil, err
	})
	if err != nil {
		return app.CommandResult{}, err
	}

	return result, nil
}

// OnInit hands the app its capability facade, bridged into the isolate.
func (remote *remoteApp) OnInit(caps app.Capabilities) {
	remote.caps = caps
	if remote.initFn == nil {
		return
	}

	_, _ = remote.isolate.Enter(func(vm *goja.Runtime) (goja.Value, error) {
		return remote.initFn(remote.exports, capabilityValue(vm, caps))
	})
}

// OnUserEnter notifies the app of an authenticated caller entering it.
func (remote *remoteApp) OnUserEnter(_ context.Context, userID string, view app.SessionView) {
	remote.notify(remote.enterFn, userID, view)
}

// OnUserExit notifies the app of an authenticated caller leaving it.
func (remote *remoteApp) OnUserExit(_ context.Context, userID string, view app.SessionView) {
	remote.notify(remote.exitFn, userID, view)
}

func (remote *remoteApp) notify(fn goja.Callable, userID string, view app.SessionView) {
	if fn == nil {
		return
	}
	_, _ = remote.isolate.Enter(func(vm *goja.Runtime) (goja.Value, error) {
		return fn(remote.exports, vm.ToValue(userID), sessionViewValue(vm, view))
	})
}

func (remote *remoteApp) callForString(fn goja.Callable) (string, error) {
	var text string
	_, err := remote.isolate.Enter(func(vm *goja.Runtime) (goja.Value, error) {
		value, err := fn(remote.exports)
		if err != nil {
			return nil, err
		}
		exported, ok := value.Export().(string)
		if !ok {
			return nil, fmt.Errorf("expected a string return")
		}
		text = exported
		return nil, nil
	})
	return text, err
}

// # Value Bridging

// nullableString converts an optional host string to a JS string or null.
func nullableString(vm *goja.Runtime, value *string) goja.Value {
	if value == nil {
		return goja.Null()
	}
	return vm.ToValue(*value)
}

// sessionViewValue deep-copies the session projection into the isolate.
func sessionViewValue(vm *goja.Runtime, view app.SessionView) goja.Value {
	return vm.ToValue(map[string]any{
		"sessionKey":     view.Key,
		"userId":         view.UserID,
		"username":       view.Username,
		"role":           view.Role,
		"currentArea":    view.CurrentArea,
		"commandHistory": append([]string(nil), view.CommandHistory...),
		"data":           view.Data,
	})
}

// resultFromValue converts an app's handleCommand return into the host
// shape: screen must be string or null, refresh defaults to true.
func resultFromValue(value goja.Value) (app.CommandResult, error) {
	exported, ok := value.Export().(map[string]any)
	if !ok {
		return app.CommandResult{}, fmt.Errorf("handleCommand must return an object")
	}

	result := app.CommandResult{Refresh: true}

	switch screen := exported["screen"].(type) {
	case nil:
		result.Screen = nil
	case string:
		result.Screen = &screen
	default:
		return app.CommandResult{}, fmt.Errorf("screen must be a string or null")
	}

	response, ok := exported["response"].(string)
	if !ok {
		return app.CommandResult{}, fmt.Errorf("response must be a string")
	}
	result.Response = response

	if refresh, present := exported["refresh"].(bool); present {
		result.Refresh = refresh
	}
	if data, present := exported["data"].(map[string]any); present {
		result.Data = data
	}

	return result, nil
}

// # Capability Bridging

// capabilityValue exposes the host facade to the isolate as plain
// functions. Errors surface as JS-friendly negatives (null / false) so
// sandboxed code can degrade without try/catch ceremony.
func capabilityValue(vm *goja.Runtime, caps app.Capabilities) goja.Value {
	object := vm.NewObject()

	_ = object.Set("appId", caps.AppID())
	_ = object.Set("storage", storageValue(vm, caps.Storage()))
	_ = object.Set("userStorage", func(userID string) goja.Value {
		return storageValue(vm, caps.UserStorage(userID))
	})
	_ = object.Set("namespacedStorage", func(namespace string) goja.Value {
		return storageValue(vm, caps.NamespacedStorage(namespace))
	})
	_ = object.Set("currentUser", func(view map[string]any) goja.Value {
		user, err := caps.CurrentUser(context.Background(), viewFromMap(view))
		if err != nil || user == nil {
			return goja.Null()
		}
		return vm.ToValue(map[string]any{
			"id":          user.ID,
			"username":    user.Username,
			"displayName": user.DisplayName,
			"role":        user.Role,
			"joinDate":    user.JoinDate.UnixMilli(),
		})
	})

	utils := vm.NewObject()
	_ = utils.Set("formatDate", func(millis int64) string {
		return caps.Utils().FormatDate(time.UnixMilli(millis))
	})
	_ = utils.Set("boxedTitle", caps.Utils().BoxedTitle)
	_ = utils.Set("separator", caps.Utils().Separator)
	_ = object.Set("utils", utils)

	return object
}

// storageValue bridges one storage scope into the isolate.
func storageValue(vm *goja.Runtime, storage app.Storage) goja.Value {
	object := vm.NewObject()

	_ = object.Set("get", func(key string) goja.Value {
		value, found, err := storage.Get(context.Background(), key)
		if err != nil || !found {
			return goja.Null()
		}
		return vm.ToValue(value)
	})
	_ = object.Set("set", func(key string, value goja.Value, ttlMillis ...int64) bool {
		if len(ttlMillis) > 0 && ttlMillis[0] > 0 {
			expiresAt := time.Now().Add(time.Duration(ttlMillis[0]) * time.Millisecond)
			return storage.SetWithExpiry(context.Background(), key, value.Export(), expiresAt) == nil
		}
		return storage.Set(context.Background(), key, value.Export()) == nil
	})
	_ = object.Set("delete", func(key string) bool {
		removed, err := storage.Delete(context.Background(), key)
		return err == nil && removed
	})
	_ = object.Set("keys", func() goja.Value {
		keys, err := storage.Keys(context.Background())
		if err != nil {
			return vm.ToValue([]string{})
		}
		return vm.ToValue(keys)
	})

	return object
}

// viewFromMap rebuilds a session view from the JS-side object.
func viewFromMap(view map[string]any) app.SessionView {
	str := func(key string) string {
		value, _ := view[key].(string)
		return value
	}
	return app.SessionView{
		Key:         str("sessionKey"),
		UserID:      str("userId"),
		Username:    str("username"),
		Role:        str("role"),
		CurrentArea: str("currentArea"),
	}
}
