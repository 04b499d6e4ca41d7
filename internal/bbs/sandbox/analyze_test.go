// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/internal/platform/constants"
)

/*
TestAnalyze_Rejections verifies that each class of dangerous construct is
refused with a reason naming the exact violation.
*/
func TestAnalyze_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		wantReason string
	}{
		{
			name:       "direct eval call",
			source:     `var x = eval('1+1');`,
			wantReason: "dangerous method: eval",
		},
		{
			name:       "function constructor",
			source:     `var f = new Function('return 1');`,
			wantReason: "Function constructor",
		},
		{
			name:       "prototype chain escape",
			source:     `var p = {}.__proto__;`,
			wantReason: "prototype chain",
		},
		{
			name:       "constructor chain escape",
			source:     `var c = (function(){}).constructor('return this')();`,
			wantReason: "prototype chain",
		},
		{
			name:       "forbidden global process",
			source:     `var env = process.env;`,
			wantReason: "forbidden global: process",
		},
		{
			name:       "fetch call",
			source:     `fetch('https://example.com');`,
			wantReason: "dangerous method: fetch",
		},
		{
			name:       "forbidden global window",
			source:     `window.alert('hi');`,
			wantReason: "forbidden global: window",
		},
		{
			name:       "forbidden module require",
			source:     `var fs = require('fs');`,
			wantReason: "forbidden module: fs",
		},
		{
			name:       "node-prefixed module require",
			source:     `var fs = require('node:fs');`,
			wantReason: "forbidden module: node:fs",
		},
		{
			name:       "non-literal require",
			source:     `var name = 'f' + 's'; var m = require(name);`,
			wantReason: "non-literal module name",
		},
		{
			name:       "unknown module require",
			source:     `var m = require('left-pad');`,
			wantReason: "unknown module: left-pad",
		},
		{
			name:       "escape sequence obfuscation",
			source:     `var s = "\x65\x76\x61\x6c";`,
			wantReason: "escape sequences",
		},
		{
			name:       "dynamic code assembly",
			source:     `var s = String.fromCharCode(101, 118);`,
			wantReason: "dynamic code assembly",
		},
		{
			name:       "with statement",
			source:     `var o = {}; with (o) { x = 1; }`,
			wantReason: "with-statements",
		},
		{
			name:       "oversized source",
			source:     strings.Repeat("// padding line\n", constants.SandboxSourceMaxLines+1),
			wantReason: "lines",
		},
		{
			name:       "does not parse",
			source:     `var = ;`,
			wantReason: "does not parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Analyze(tt.source)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantReason)

			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, "SANDBOX_REJECTED", appError.Code)
		})
	}
}

/*
TestAnalyze_ReachesNestedConstructs verifies the tree descent: violations
buried inside nested statements, literals, and call arguments are found,
and property names on member expressions are not mistaken for globals.
*/
func TestAnalyze_ReachesNestedConstructs(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		wantReason string
	}{
		{
			name:       "inside nested if bodies",
			source:     `if (true) { if (true) { var e = process; } }`,
			wantReason: "forbidden global: process",
		},
		{
			name:       "inside object literal method",
			source:     `var cfg = { run: function () { return [1, 2, fetch('x')]; } };`,
			wantReason: "dangerous method: fetch",
		},
		{
			name:       "inside call argument",
			source:     `console.log(require('fs'));`,
			wantReason: "forbidden module: fs",
		},
		{
			name:       "inside loop and ternary",
			source:     `for (var i = 0; i < 3; i++) { var v = i ? window : null; }`,
			wantReason: "forbidden global: window",
		},
		{
			name:       "inside returned function",
			source:     `function make() { return function () { return eval('1'); }; }`,
			wantReason: "dangerous method: eval",
		},
		{
			name:       "inside switch case",
			source:     `switch (1) { case 1: var w = WebSocket; break; }`,
			wantReason: "forbidden global: WebSocket",
		},
		{
			name:       "inside try-catch",
			source:     `try { var x = 1; } catch (e) { setInterval(function () {}, 10); }`,
			wantReason: "dangerous method: setInterval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Analyze(tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantReason)
		})
	}

	// A property that merely shares a forbidden global's name is fine.
	assert.NoError(t, Analyze(`var stats = {}; stats.process = 1; var n = stats.process;`))
}

/*
TestAnalyze_AcceptsWellFormedApp verifies that an ordinary app script,
including allow-listed requires, passes every pass.
*/
func TestAnalyze_AcceptsWellFormedApp(t *testing.T) {
	source := `
		var utils = require('board-utils');
		var dates = require('board-dates');

		module.exports = {
			name: 'Hangman',
			getWelcomeScreen: function () { return 'WELCOME'; },
			getHelp: function (screen) { return 'Type GUESS <letter>'; },
			handleCommand: function (screen, command, session) {
				return { screen: screen, response: dates.relative(0), refresh: true };
			}
		};
	`

	assert.NoError(t, Analyze(source))
}

/*
TestAnalyze_FunctionBounds verifies the structural limits on function
shape.
*/
func TestAnalyze_FunctionBounds(t *testing.T) {
	params := make([]string, constants.SandboxMaxFunctionParams+1)
	for i := range params {
		params[i] = fmt.Sprintf("p%d", i)
	}
	wide := "function f(" + strings.Join(params, ", ") + ") { return 1; }"

	err := Analyze(wide)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameters")

	deep := strings.Repeat("function d() { ", constants.SandboxMaxFunctionDepth+1) +
		"return 1;" + strings.Repeat(" }", constants.SandboxMaxFunctionDepth+1)

	err = Analyze(deep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting")
}
