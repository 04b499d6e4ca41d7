// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/termboard/internal/bbs/capability"
	"github.com/taibuivan/termboard/internal/bbs/registry"
	"github.com/taibuivan/termboard/internal/keyvalue"
	"github.com/taibuivan/termboard/internal/platform/apperr"
)

const loaderTestScript = `
	module.exports = {
		name: 'Hangman',
		version: '1.0.0',
		getWelcomeScreen: function () { return 'WELCOME TO HANGMAN'; },
		getHelp: function (screen) { return 'Type PLAY'; },
		handleCommand: function (screen, command, session) {
			return { screen: screen, response: 'ok', refresh: false };
		}
	};
`

// cannedTransport serves file bodies by base name and counts round trips.
type cannedTransport struct {
	mutex    sync.Mutex
	files    map[string]string
	requests int
}

func (transport *cannedTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	transport.mutex.Lock()
	transport.requests++
	body, found := transport.files[path.Base(request.URL.Path)]
	transport.mutex.Unlock()

	status := http.StatusOK
	if !found {
		status = http.StatusNotFound
	}

	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
		Request:    request,
	}, nil
}

func (transport *cannedTransport) serve(name, body string) {
	transport.mutex.Lock()
	defer transport.mutex.Unlock()
	transport.files[name] = body
}

func (transport *cannedTransport) roundTrips() int {
	transport.mutex.Lock()
	defer transport.mutex.Unlock()
	return transport.requests
}

func newTestLoader(t *testing.T, files map[string]string) (*Loader, *registry.Registry, *cannedTransport) {
	t.Helper()

	logger := testLogger()
	transport := &cannedTransport{files: files}
	fetcher := &Fetcher{client: &http.Client{Transport: transport}}

	capabilities := capability.NewFactory(keyvalue.NewMemoryRepository(), nil, logger)
	reg := registry.New(capabilities.For, logger)

	loader := NewLoader(fetcher, reg, capabilities, nil, testAllowedHosts, logger)
	return loader, reg, transport
}

/*
TestLoader_Install verifies the happy path: fetch, analyze, execute,
extract, guard, register.
*/
func TestLoader_Install(t *testing.T) {
	loader, reg, _ := newTestLoader(t, map[string]string{
		"index.js":   loaderTestScript,
		ManifestFile: `{"name": "Hangman", "version": "0.9.0", "main": "index.js"}`,
	})

	entry, err := loader.Install(context.Background(), "https://github.com/alice/hangman")

	require.NoError(t, err)
	assert.Equal(t, registry.OriginRemote, entry.Origin)
	assert.Equal(t, "remote_alice_hangman", entry.Meta().ID)
	// Export metadata wins over the manifest.
	assert.Equal(t, "1.0.0", entry.Meta().Version)

	assert.Equal(t, 1, reg.Count())
	assert.Equal(t, []string{"https://github.com/alice/hangman"}, reg.ListRemoteURLs())
}

/*
TestLoader_Install_RejectsDangerousSource verifies that source containing
an eval call never reaches execution and leaves the registry untouched.
*/
func TestLoader_Install_RejectsDangerousSource(t *testing.T) {
	loader, reg, _ := newTestLoader(t, map[string]string{
		"index.js": `
			module.exports = {
				getWelcomeScreen: function () { return eval('1+1'); },
				getHelp: function () { return 'help'; },
				handleCommand: function (screen, command, session) {
					return { screen: screen, response: 'ok' };
				}
			};
		`,
	})

	_, err := loader.Install(context.Background(), "https://github.com/mallory/evil-app")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dangerous method: eval")

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "SANDBOX_REJECTED", appError.Code)

	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, reg.ListRemoteURLs())
}

/*
TestLoader_Install_FetchFailure verifies that an unreachable main file
surfaces as a remote-fetch failure without registry changes.
*/
func TestLoader_Install_FetchFailure(t *testing.T) {
	loader, reg, _ := newTestLoader(t, map[string]string{})

	_, err := loader.Install(context.Background(), "https://github.com/alice/hangman")

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "REMOTE_FETCH_FAILED", appError.Code)
	assert.Equal(t, 0, reg.Count())
}

/*
TestLoader_Install_DisallowedHost verifies URL validation happens before
any network traffic.
*/
func TestLoader_Install_DisallowedHost(t *testing.T) {
	loader, _, transport := newTestLoader(t, map[string]string{})

	_, err := loader.Install(context.Background(), "https://evil.example.com/alice/hangman")

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "VALIDATION_ERROR", appError.Code)
	assert.Equal(t, 0, transport.roundTrips())
}

/*
TestLoader_InstallCache verifies that a repeat install is served from the
artifact cache while Reinstall always refetches.
*/
func TestLoader_InstallCache(t *testing.T) {
	loader, _, transport := newTestLoader(t, map[string]string{
		"index.js": loaderTestScript,
	})
	ctx := context.Background()
	url := "https://github.com/alice/hangman"

	_, err := loader.Install(ctx, url)
	require.NoError(t, err)
	afterFirst := transport.roundTrips()

	_, err = loader.Install(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, afterFirst, transport.roundTrips())

	_, err = loader.Reinstall(ctx, url)
	require.NoError(t, err)
	assert.Greater(t, transport.roundTrips(), afterFirst)
}

/*
TestLoader_RefreshAll verifies that refresh re-resolves tracked URLs past
the cache and picks up the new revision.
*/
func TestLoader_RefreshAll(t *testing.T) {
	loader, reg, transport := newTestLoader(t, map[string]string{
		"index.js": loaderTestScript,
	})
	ctx := context.Background()

	_, err := loader.Install(ctx, "https://github.com/alice/hangman")
	require.NoError(t, err)

	transport.serve("index.js", strings.Replace(loaderTestScript, "1.0.0", "2.0.0", 1))

	assert.Equal(t, 1, loader.RefreshAll(ctx))

	entry, found := reg.Get("remote_alice_hangman")
	require.True(t, found)
	assert.Equal(t, "2.0.0", entry.Meta().Version)
	assert.Equal(t, 1, reg.Count())
}

/*
TestLoader_Uninstall verifies removal of the registration and that the
app's isolate no longer serves calls.
*/
func TestLoader_Uninstall(t *testing.T) {
	loader, reg, _ := newTestLoader(t, map[string]string{
		"index.js": loaderTestScript,
	})

	entry, err := loader.Install(context.Background(), "https://github.com/alice/hangman")
	require.NoError(t, err)

	installed := entry.App
	assert.Equal(t, "WELCOME TO HANGMAN", installed.WelcomeScreen())

	require.True(t, loader.Uninstall("remote_alice_hangman"))
	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, reg.ListRemoteURLs())

	// The disposed isolate degrades to the in-app failure line.
	assert.NotEqual(t, "WELCOME TO HANGMAN", installed.WelcomeScreen())

	assert.False(t, loader.Uninstall("remote_alice_hangman"))
}
