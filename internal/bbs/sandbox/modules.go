// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// # Module Allow-List
//
// The sandbox's require() resolves only a fixed table of host-written
// stand-ins. Each is a minimal, side-effect-free implementation: no
// network, no filesystem, no process access.

// moduleBuilder constructs one allow-listed module inside a runtime.
type moduleBuilder func(vm *goja.Runtime) goja.Value

// allowedModules maps requireable names to their host implementations.
var allowedModules = map[string]moduleBuilder{
	"board-utils": buildUtilsModule,
	"board-dates": buildDatesModule,
}

// allowedModule reports whether a module name resolves in the sandbox.
func allowedModule(name string) bool {
	_, found := allowedModules[name]
	return found
}

// buildUtilsModule provides deepEqual / pick / merge / get over plain data.
func buildUtilsModule(vm *goja.Runtime) goja.Value {
	module := vm.NewObject()

	_ = module.Set("deepEqual", func(a, b goja.Value) bool {
		return reflect.DeepEqual(a.Export(), b.Export())
	})

	_ = module.Set("pick", func(value map[string]any, keys []string) map[string]any {
		picked := map[string]any{}
		for _, key := range keys {
			if nested, found := value[key]; found {
				picked[key] = nested
			}
		}
		return picked
	})

	_ = module.Set("merge", func(base, overlay map[string]any) map[string]any {
		merged := make(map[string]any, len(base)+len(overlay))
		for key, nested := range base {
			merged[key] = nested
		}
		for key, nested := range overlay {
			merged[key] = nested
		}
		return merged
	})

	_ = module.Set("get", func(value map[string]any, path string, fallback goja.Value) any {
		current := any(value)
		for _, segment := range strings.Split(path, ".") {
			asMap, ok := current.(map[string]any)
			if !ok {
				return fallback.Export()
			}
			current, ok = asMap[segment]
			if !ok {
				return fallback.Export()
			}
		}
		return current
	})

	return module
}

// buildDatesModule provides format and relative-time rendering.
func buildDatesModule(vm *goja.Runtime) goja.Value {
	module := vm.NewObject()

	_ = module.Set("format", func(millis int64, layout string) string {
		t := time.UnixMilli(millis)
		switch layout {
		case "date":
			return t.Format("Jan 02, 2006")
		case "time":
			return t.Format("15:04")
		default:
			return t.Format("Jan 02, 2006 15:04")
		}
	})

	_ = module.Set("relative", func(millis int64) string {
		delta := time.Since(time.UnixMilli(millis))
		past := delta >= 0
		if !past {
			delta = -delta
		}

		var magnitude string
		switch {
		case delta < time.Minute:
			magnitude = "moments"
		case delta < time.Hour:
			magnitude = plural(int(delta.Minutes()), "minute")
		case delta < 24*time.Hour:
			magnitude = plural(int(delta.Hours()), "hour")
		default:
			magnitude = plural(int(delta.Hours()/24), "day")
		}

		if past {
			return magnitude + " ago"
		}
		return "in " + magnitude
	})

	return module
}

func plural(count int, unit string) string {
	if count == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(count) + " " + unit + "s"
}
