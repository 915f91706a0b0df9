package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"superpose/internal/mutate"
	"superpose/internal/variant"
)

// loadInputs reads the base snapshot and the directive sets. The directives
// file is a YAML list of sets; each set produces one candidate variant.
func loadInputs(snapshotPath, directivesPath string) (*variant.Snapshot, [][]mutate.Directive, error) {
	snapData, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var base variant.Snapshot
	if err := yaml.Unmarshal(snapData, &base); err != nil {
		return nil, nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	dirData, err := os.ReadFile(directivesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directives: %w", err)
	}
	var sets [][]mutate.Directive
	if err := yaml.Unmarshal(dirData, &sets); err != nil {
		return nil, nil, fmt.Errorf("failed to parse directives: %w", err)
	}
	if len(sets) == 0 {
		return nil, nil, fmt.Errorf("directives file contains no directive sets")
	}
	return &base, sets, nil
}
