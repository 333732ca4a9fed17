// Package workflows is the name-to-tree-builder registry the CLI's `run`
// command uses to load a workflow definition without hardcoding it: each
// entry is a small Go-native function that builds the root element for one
// tick, closing over whatever elements.Ctx and adapters it needs.
package workflows

import (
	"fmt"
	"sort"

	"github.com/smithers-run/smithers/internal/elements"
	"github.com/smithers-run/smithers/internal/reconciler"
)

// Build constructs the root element for one engine tick. It is called fresh
// every tick, same as engine.BuildRoot, and is handed the Ctx the CLI
// assembled for this run (Store/Scope/ExecID already wired).
type Build func(ctx elements.Ctx) reconciler.Element

var registry = map[string]Build{}

// Register adds a named workflow to the registry. Called from each
// workflow's init() so `smithers run <name>` can find it by name alone.
// Panics on a duplicate name, a programmer error caught at startup rather
// than silently shadowing a workflow.
func Register(name string, build Build) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("workflows: %q already registered", name))
	}
	registry[name] = build
}

// Lookup returns the named workflow's builder, or false if no workflow was
// registered under that name.
func Lookup(name string) (Build, bool) {
	b, ok := registry[name]
	return b, ok
}

// Names returns every registered workflow name, sorted, for `smithers run
// --help` and error messages that list valid choices.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
