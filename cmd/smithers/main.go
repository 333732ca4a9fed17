// Smithers is a declarative multi-agent orchestration engine: a reconciler
// that re-renders a tree of Phases, Steps, and external-executor leaves
// against a durable SQLite-backed store every tick, so a workflow resumes
// exactly where it left off after a crash or restart.
package main

import (
	"os"
	"runtime/debug"

	"github.com/smithers-run/smithers/internal/commands"
)

// version is set via ldflags (-X main.version=v1.0.0) or detected
// automatically from Go module info embedded by go install.
var version = "dev"

func main() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	if err := commands.Execute(version); err != nil {
		os.Exit(1)
	}
}
