// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAllowedHosts = []string{"github.com", "raw.githubusercontent.com"}

/*
TestParseSourceURL verifies decomposition of the accepted URL shapes and
rejection of everything else.
*/
func TestParseSourceURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Source
		wantErr bool
	}{
		{
			name: "plain repository page",
			url:  "https://github.com/alice/board-games",
			want: Source{Owner: "alice", Repo: "board-games", Branch: "main"},
		},
		{
			name: "tree form with branch",
			url:  "https://github.com/alice/board-games/tree/develop",
			want: Source{Owner: "alice", Repo: "board-games", Branch: "develop"},
		},
		{
			name: "tree form with subpath",
			url:  "https://github.com/alice/board-games/tree/main/apps/hangman",
			want: Source{Owner: "alice", Repo: "board-games", Branch: "main", Subpath: "apps/hangman"},
		},
		{
			name: "raw content prefix",
			url:  "https://raw.githubusercontent.com/alice/board-games/main/apps/hangman",
			want: Source{Owner: "alice", Repo: "board-games", Branch: "main", Subpath: "apps/hangman"},
		},
		{
			name: "dot-git suffix trimmed",
			url:  "https://github.com/alice/board-games.git",
			want: Source{Owner: "alice", Repo: "board-games", Branch: "main"},
		},
		{
			name:    "disallowed host",
			url:     "https://gitlab.com/alice/board-games",
			wantErr: true,
		},
		{
			name:    "non-http scheme",
			url:     "ftp://github.com/alice/board-games",
			wantErr: true,
		},
		{
			name:    "missing repository segment",
			url:     "https://github.com/alice",
			wantErr: true,
		},
		{
			name:    "subpath without tree form",
			url:     "https://github.com/alice/board-games/blob/main/index.js",
			wantErr: true,
		},
		{
			name:    "empty",
			url:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := ParseSourceURL(tt.url, testAllowedHosts)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.Owner, source.Owner)
			assert.Equal(t, tt.want.Repo, source.Repo)
			assert.Equal(t, tt.want.Branch, source.Branch)
			assert.Equal(t, tt.want.Subpath, source.Subpath)
			assert.Equal(t, tt.url, source.URL)
		})
	}
}

/*
TestSource_AppID verifies identifier synthesis, including slugging of
mixed-case and path-separated segments.
*/
func TestSource_AppID(t *testing.T) {
	plain := Source{Owner: "alice", Repo: "board-games"}
	assert.Equal(t, "remote_alice_board_games", plain.AppID())

	withSubpath := Source{Owner: "Alice", Repo: "Board-Games", Subpath: "apps/Hangman"}
	assert.Equal(t, "remote_alice_board_games_apps_hangman", withSubpath.AppID())
}

/*
TestSource_RawFileURL verifies raw-content URL construction with and
without a subpath.
*/
func TestSource_RawFileURL(t *testing.T) {
	source := Source{Owner: "alice", Repo: "board-games", Branch: "main"}
	assert.Equal(t,
		"https://raw.githubusercontent.com/alice/board-games/main/index.js",
		source.RawFileURL("index.js"))

	source.Subpath = "apps/hangman"
	assert.Equal(t,
		"https://raw.githubusercontent.com/alice/board-games/main/apps/hangman/bbs-app.json",
		source.RawFileURL(ManifestFile))
}
