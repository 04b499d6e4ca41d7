// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/internal/platform/constants"
)

// # Static Analysis
//
// Analysis runs in three passes of increasing cost: cheap size/shape
// checks, regex screens for obfuscation patterns, then a full AST walk.
// The first violation stops the pipeline; the reason names the exact
// construct so app authors can fix their code.

// forbiddenGlobals are identifiers a sandboxed app must never reference.
var forbiddenGlobals = map[string]bool{
	"process":           true,
	"global":            true,
	"globalThis":        true,
	"window":            true,
	"document":          true,
	"localStorage":      true,
	"sessionStorage":    true,
	"indexedDB":         true,
	"fetch":             true,
	"XMLHttpRequest":    true,
	"WebSocket":         true,
	"Buffer":            true,
	"SharedArrayBuffer": true,
	"Atomics":           true,
	"Reflect":           true,
	"Proxy":             true,
}

// dangerousCalls are builtins whose invocation or construction is refused.
var dangerousCalls = map[string]bool{
	"eval":           true,
	"Function":       true,
	"setInterval":    true,
	"setImmediate":   true,
	"Worker":         true,
	"SharedWorker":   true,
	"WebSocket":      true,
	"XMLHttpRequest": true,
	"fetch":          true,
	"importScripts":  true,
}

// forbiddenModules are require targets that never resolve in the sandbox.
var forbiddenModules = map[string]bool{
	"fs":             true,
	"net":            true,
	"http":           true,
	"https":          true,
	"http2":          true,
	"dgram":          true,
	"tls":            true,
	"dns":            true,
	"os":             true,
	"path":           true,
	"child_process":  true,
	"cluster":        true,
	"worker_threads": true,
	"crypto":         true,
	"vm":             true,
	"module":         true,
	"isolated-vm":    true,
	"esprima":        true,
	"acorn":          true,
}

var (
	// protoChainPattern catches prototype/constructor chain escapes.
	protoChainPattern = regexp.MustCompile(`__proto__|\[\s*['"](?:constructor|prototype)['"]\s*\]|\.constructor\s*[(.[]`)
	// escapeObfuscationPattern catches dense hex/unicode escape sequences
	// used to smuggle identifiers past textual screens.
	escapeObfuscationPattern = regexp.MustCompile(`(?:\\x[0-9A-Fa-f]{2}){4,}|(?:\\u[0-9A-Fa-f]{4}){4,}`)
	// evalAssemblyPattern catches string assembly of "eval"-like names.
	evalAssemblyPattern = regexp.MustCompile(`['"]ev['"]\s*\+\s*['"]al['"]|String\.fromCharCode\s*\(`)
	// withStatementPattern catches with-statements (also refused by the parser
	// in strict mode, but screened here for the precise reason).
	withStatementPattern = regexp.MustCompile(`(?:^|[^\w$])with\s*\(`)
	// dynamicFunctionPattern catches dynamic function construction.
	dynamicFunctionPattern = regexp.MustCompile(`new\s+Function\s*\(|Function\s*\(\s*['"]`)
)

/*
Analyze statically screens app source before it may execute.

Parameters:
  - source: string (JavaScript source text)

Returns:
  - error: apperr.SandboxRejected naming the first violation, or nil
*/
func Analyze(source string) error {
	if err := cheapChecks(source); err != nil {
		return err
	}
	if err := regexChecks(source); err != nil {
		return err
	}
	return astChecks(source)
}

// cheapChecks refuses pathological inputs before any parsing work.
func cheapChecks(source string) error {
	if len(source) > constants.SandboxSourceMaxBytes {
		return apperr.SandboxRejected(fmt.Sprintf("source exceeds %d bytes", constants.SandboxSourceMaxBytes))
	}
	if lines := strings.Count(source, "\n") + 1; lines > constants.SandboxSourceMaxLines {
		return apperr.SandboxRejected(fmt.Sprintf("source exceeds %d lines", constants.SandboxSourceMaxLines))
	}

	depth, maxDepth := 0, 0
	balance := map[rune]int{}
	for _, r := range source {
		switch r {
		case '{':
			depth++
			balance['{']++
			if depth > maxDepth {
				maxDepth = depth
			}
		case '}':
			depth--
			balance['{']--
		case '(':
			balance['(']++
		case ')':
			balance['(']--
		case '[':
			balance['[']++
		case ']':
			balance['[']--
		}
	}
	if maxDepth > constants.SandboxMaxBraceNesting {
		return apperr.SandboxRejected(fmt.Sprintf("brace nesting exceeds %d", constants.SandboxMaxBraceNesting))
	}
	for bracket, count := range balance {
		if count > 50 || count < -50 {
			return apperr.SandboxRejected(fmt.Sprintf("severe bracket imbalance on %q", bracket))
		}
	}

	return nil
}

// regexChecks screens for obfuscation patterns the AST cannot see (they
// hide inside string literals or survive as odd-but-parseable syntax).
func regexChecks(source string) error {
	switch {
	case protoChainPattern.MatchString(source):
		return apperr.SandboxRejected("prototype chain access is not allowed")
	case escapeObfuscationPattern.MatchString(source):
		return apperr.SandboxRejected("obfuscated escape sequences are not allowed")
	case evalAssemblyPattern.MatchString(source):
		return apperr.SandboxRejected("dynamic code assembly is not allowed")
	case withStatementPattern.MatchString(source):
		return apperr.SandboxRejected("with-statements are not allowed")
	case dynamicFunctionPattern.MatchString(source):
		return apperr.SandboxRejected("dangerous method: Function constructor")
	}
	return nil
}

// astChecks parses the source and walks the tree for forbidden constructs.
func astChecks(source string) error {
	program, err := parser.ParseFile(nil, "app.js", source, 0)
	if err != nil {
		return apperr.SandboxRejected(fmt.Sprintf("source does not parse: %v", err))
	}

	visitor := &securityVisitor{}
	walkNode(visitor, program)

	if visitor.violation != "" {
		return apperr.SandboxRejected(visitor.violation)
	}
	if visitor.functionCount > constants.SandboxMaxFunctionCount {
		return apperr.SandboxRejected(fmt.Sprintf("more than %d function declarations", constants.SandboxMaxFunctionCount))
	}

	return nil
}

// # Tree Walking
//
// goja's ast package defines only the node types; it ships no visitor or
// Walk helper. Children are therefore discovered structurally: every
// struct field, slice element, and interface value reachable from a node
// is descended until the next ast.Node is found.

// skippedFields are node struct fields the walker must not descend.
// Hoisted declaration lists alias bindings already present in the
// statement body, so walking them would visit subtrees twice.
var skippedFields = map[string]bool{
	"DeclarationList": true,
	"File":            true,
}

// walkNode applies the visitor to node and, when the visitor allows it,
// to every child node reachable from its fields.
func walkNode(visitor *securityVisitor, node ast.Node) {
	value := reflect.ValueOf(node)
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return
		}
		value = value.Elem()
	}

	if !visitor.Enter(node) {
		return
	}

	if dot, ok := node.(*ast.DotExpression); ok {
		// The right side of a member expression is a property name, not
		// an identifier reference; only the object side is walked.
		walkChild(visitor, reflect.ValueOf(dot.Left))
	} else if value.Kind() == reflect.Struct {
		for i := 0; i < value.NumField(); i++ {
			if skippedFields[value.Type().Field(i).Name] {
				continue
			}
			walkChild(visitor, value.Field(i))
		}
	}

	visitor.Exit(node)
}

// walkChild descends one field value, recursing through containers until
// it reaches ast nodes.
func walkChild(visitor *securityVisitor, value reflect.Value) {
	if !value.IsValid() || !value.CanInterface() {
		return
	}

	switch value.Kind() {
	case reflect.Interface, reflect.Ptr:
		if value.IsNil() {
			return
		}
		if node, ok := value.Interface().(ast.Node); ok {
			walkNode(visitor, node)
			return
		}
		walkChild(visitor, value.Elem())
	case reflect.Slice, reflect.Array:
		for i := 0; i < value.Len(); i++ {
			walkChild(visitor, value.Index(i))
		}
	case reflect.Struct:
		for i := 0; i < value.NumField(); i++ {
			walkChild(visitor, value.Field(i))
		}
	}
}

// securityVisitor inspects each AST node, recording the first violation
// it sees. Enter reports whether the walk should descend into the node.
type securityVisitor struct {
	violation     string
	functionDepth int
	functionCount int
}

func (visitor *securityVisitor) Enter(node ast.Node) bool {
	if visitor.violation != "" {
		return false
	}

	switch typed := node.(type) {

	case *ast.Identifier:
		name := typed.Name.String()
		if forbiddenGlobals[name] {
			visitor.violation = fmt.Sprintf("forbidden global: %s", name)
			return false
		}

	case *ast.CallExpression:
		if name, ok := calleeName(typed.Callee); ok {
			if name == "eval" {
				visitor.violation = "dangerous method: eval"
				return false
			}
			if dangerousCalls[name] {
				visitor.violation = fmt.Sprintf("dangerous method: %s", name)
				return false
			}
			if name == "require" {
				if reason := screenRequire(typed); reason != "" {
					visitor.violation = reason
					return false
				}
			}
		}

	case *ast.NewExpression:
		if name, ok := calleeName(typed.Callee); ok && dangerousCalls[name] {
			visitor.violation = fmt.Sprintf("dangerous constructor: %s", name)
			return false
		}

	case *ast.FunctionLiteral:
		return visitor.enterFunction(len(typed.ParameterList.List))

	case *ast.ArrowFunctionLiteral:
		return visitor.enterFunction(len(typed.ParameterList.List))
	}

	return true
}

func (visitor *securityVisitor) Exit(node ast.Node) {
	switch node.(type) {
	case *ast.FunctionLiteral, *ast.ArrowFunctionLiteral:
		if visitor.violation == "" {
			visitor.functionDepth--
		}
	}
}

// enterFunction applies the per-function structural bounds.
func (visitor *securityVisitor) enterFunction(paramCount int) bool {
	visitor.functionCount++
	visitor.functionDepth++

	if paramCount > constants.SandboxMaxFunctionParams {
		visitor.violation = fmt.Sprintf("function with more than %d parameters", constants.SandboxMaxFunctionParams)
		return false
	}
	if visitor.functionDepth > constants.SandboxMaxFunctionDepth {
		visitor.violation = fmt.Sprintf("function nesting exceeds %d", constants.SandboxMaxFunctionDepth)
		return false
	}

	return true
}

// screenRequire refuses non-literal and forbidden-module requires.
func screenRequire(call *ast.CallExpression) string {
	if len(call.ArgumentList) != 1 {
		return "require must take a single literal module name"
	}

	literal, ok := call.ArgumentList[0].(*ast.StringLiteral)
	if !ok {
		return "require with a non-literal module name is not allowed"
	}

	module := literal.Value.String()
	if forbiddenModules[module] || strings.HasPrefix(module, "node:") {
		return fmt.Sprintf("forbidden module: %s", module)
	}
	if !allowedModule(module) {
		return fmt.Sprintf("unknown module: %s", module)
	}

	return ""
}

// calleeName resolves the simple identifier name of a call target.
func calleeName(callee ast.Expression) (string, bool) {
	identifier, ok := callee.(*ast.Identifier)
	if !ok {
		return "", false
	}
	return identifier.Name.String(), true
}
