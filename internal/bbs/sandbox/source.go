// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sandbox loads board apps from remote source repositories and runs
them safely.

# Pipeline

Install runs a fixed pipeline: parse the repository URL, fetch the optional
manifest and the main source file, statically analyze the source, execute
it inside a fresh JavaScript isolate with hard time budgets, extract the
exported app as a host-side proxy, validate it against the app contract,
and wrap it with the capability guard before it reaches the registry. Any
single failure rejects the install with the precise reason; the registry is
never left with a partially installed app.

# Isolation Primitive

Apps execute in a dedicated interpreter instance per app with a scrubbed
global scope. The interpreter is interrupted when a call exceeds its wall
clock or CPU budget; a destroyed isolate is never reused.
*/
package sandbox

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/pkg/slug"
)

// # Source Addressing

// defaultBranch is assumed when the repository URL does not name one.
const defaultBranch = "main"

// rawHost serves raw file content for repository sources.
const rawHost = "raw.githubusercontent.com"

// Source is a parsed remote repository address.
type Source struct {
	Owner   string
	Repo    string
	Branch  string
	Subpath string
	// URL is the original install URL, kept verbatim for registry tracking.
	URL string
}

/*
ParseSourceURL validates and decomposes a remote repository URL.

Description: Only hosts on the allow-list are accepted. Two shapes are
understood: repository pages ("github.com/<owner>/<repo>[/tree/<branch>
[/<subpath>]]") and raw file prefixes ("raw.githubusercontent.com/<owner>/
<repo>/<branch>[/<subpath>]"). The branch defaults to "main".

Parameters:
  - rawURL: string
  - allowedHosts: []string (lowercased host names)

Returns:
  - Source: Parsed address
  - error: apperr.ValidationError for malformed or disallowed URLs
*/
func ParseSourceURL(rawURL string, allowedHosts []string) (Source, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return Source{}, apperr.ValidationError("Malformed repository URL")
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return Source{}, apperr.ValidationError("Repository URL must use http(s)")
	}

	host := strings.ToLower(parsed.Hostname())
	if !hostAllowed(host, allowedHosts) {
		return Source{}, apperr.ValidationError(fmt.Sprintf("Repository host %q is not allowed", host))
	}

	segments := splitPath(parsed.Path)
	if len(segments) < 2 {
		return Source{}, apperr.ValidationError("Repository URL must name an owner and a repository")
	}

	source := Source{
		Owner:  segments[0],
		Repo:   strings.TrimSuffix(segments[1], ".git"),
		Branch: defaultBranch,
		URL:    rawURL,
	}

	rest := segments[2:]
	if host == rawHost {
		// raw.githubusercontent.com/<owner>/<repo>/<branch>[/<subpath>]
		if len(rest) > 0 {
			source.Branch = rest[0]
			source.Subpath = strings.Join(rest[1:], "/")
		}
	} else if len(rest) > 0 {
		// github.com/<owner>/<repo>/tree/<branch>[/<subpath>]
		if rest[0] != "tree" || len(rest) < 2 {
			return Source{}, apperr.ValidationError("Repository subpaths must use the /tree/<branch>/ form")
		}
		source.Branch = rest[1]
		source.Subpath = strings.Join(rest[2:], "/")
	}

	if source.Owner == "" || source.Repo == "" {
		return Source{}, apperr.ValidationError("Repository URL must name an owner and a repository")
	}

	return source, nil
}

// AppID synthesizes the registry identifier for this source:
// "remote_<owner>_<repo>[_<subpath>]", slugged to identifier-safe form.
func (source Source) AppID() string {
	id := "remote_" + flatten(source.Owner) + "_" + flatten(source.Repo)
	if source.Subpath != "" {
		id += "_" + flatten(source.Subpath)
	}
	return id
}

// RawFileURL builds the raw-content URL of one file inside the source tree.
func (source Source) RawFileURL(file string) string {
	parts := []string{source.Owner, source.Repo, source.Branch}
	if source.Subpath != "" {
		parts = append(parts, source.Subpath)
	}
	parts = append(parts, file)

	return "https://" + rawHost + "/" + strings.Join(parts, "/")
}

// flatten slugs a path segment and folds separators into underscores.
func flatten(segment string) string {
	return strings.ReplaceAll(slug.From(segment), "-", "_")
}

func hostAllowed(host string, allowedHosts []string) bool {
	for _, allowed := range allowedHosts {
		if host == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	raw := strings.Split(strings.Trim(path, "/"), "/")
	segments := raw[:0]
	for _, segment := range raw {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}
