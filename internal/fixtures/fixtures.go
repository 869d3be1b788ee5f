// Package fixtures loads the canonical end-to-end scenarios (spec.md §8)
// as txtar archives, the way golang.org/x/tools's own test suites bundle a
// small input filesystem plus its expected output in one plain-text file
// (golang.org/x/tools/txtar, already part of the module's dependency
// graph — see DESIGN.md).
package fixtures

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/tools/txtar"
)

//go:embed *.txtar
var archiveFS embed.FS

// Scenario is one compiled-and-run golden case: a source file to compile
// and the exact stdout a correct implementation must produce.
type Scenario struct {
	Name   string
	Source string // contents of source.ax
	Output string // expected contents of stdout.txt, verbatim
}

// Load parses every embedded .txtar archive into a Scenario, sorted by
// name for deterministic iteration in tests.
func Load() ([]Scenario, error) {
	entries, err := archiveFS.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var scenarios []Scenario
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txtar") {
			continue
		}
		data, err := archiveFS.ReadFile(entry.Name())
		if err != nil {
			return nil, err
		}
		archive := txtar.Parse(data)

		name := strings.TrimSuffix(entry.Name(), ".txtar")
		var src, out string
		var haveSrc, haveOut bool
		for _, f := range archive.Files {
			switch f.Name {
			case "source.ax":
				src, haveSrc = string(f.Data), true
			case "stdout.txt":
				out, haveOut = string(f.Data), true
			}
		}
		if !haveSrc || !haveOut {
			return nil, fmt.Errorf("fixtures: %s is missing source.ax or stdout.txt", entry.Name())
		}
		scenarios = append(scenarios, Scenario{Name: name, Source: src, Output: out})
	}

	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	return scenarios, nil
}
