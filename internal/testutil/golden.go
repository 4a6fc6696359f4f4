// Package testutil provides shared test helpers for Perp Go tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ScenariosDir is the relative path from the module root to the scenarios.
const ScenariosDir = "testdata/scenarios"

// Scenario represents a test scenario loaded from a scenario.yaml file.
//
// The program is either Tokens, an already split token list, or the file
// named by the second element of Cmd.
type Scenario struct {
	Cmd    []string       `yaml:"cmd"`
	Tokens []string       `yaml:"tokens,omitempty"`
	Meta   *ScenarioMeta  `yaml:"meta,omitempty"`
	Expect ExpectedResult `yaml:"expect"`
}

// ScenarioMeta holds optional scenario metadata.
type ScenarioMeta struct {
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// ExpectedResult describes the expected outcome of running a scenario.
// Unset fields are not checked.
type ExpectedResult struct {
	ExitCode int `yaml:"exitCode"`

	// Prints lists the values printed, in order, by both execution paths.
	Prints []int64          `yaml:"prints,omitempty"`
	Table  map[string]int64 `yaml:"table,omitempty"`
	Code   []string         `yaml:"code,omitempty"`
	Error  *ExpectedError   `yaml:"error,omitempty"`
	Stdout []string         `yaml:"stdoutContains,omitempty"`
	Diags  []map[string]any `yaml:"diagnosticsSubset,omitempty"`
}

// ExpectedError describes the diagnostic a failing scenario reports.
type ExpectedError struct {
	Code  string `yaml:"code"`
	Value any    `yaml:"value,omitempty"`
}

// Mode returns the value of the --mode flag in Cmd, or "both".
func (s *Scenario) Mode() string {
	for i, arg := range s.Cmd {
		if arg == "--mode" && i+1 < len(s.Cmd) {
			return s.Cmd[i+1]
		}
		if strings.HasPrefix(arg, "--mode=") {
			return strings.TrimPrefix(arg, "--mode=")
		}
	}
	return "both"
}

// LoadScenario loads a scenario from a directory containing scenario.yaml.
func LoadScenario(dir string) (*Scenario, error) {
	f, err := os.Open(filepath.Join(dir, "scenario.yaml"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Scenario
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrapf(err, "scenario %s", dir)
	}
	if len(s.Cmd) == 0 {
		return nil, errors.Errorf("scenario %s: cmd is empty", dir)
	}
	return &s, nil
}

// ListScenarios returns all scenario directories under the given root.
func ListScenarios(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			scenarioPath := filepath.Join(root, e.Name(), "scenario.yaml")
			if _, err := os.Stat(scenarioPath); err == nil {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
	}
	return dirs, nil
}

// ReadProgramFile reads the program file referenced by the scenario cmd.
func ReadProgramFile(scenarioDir string, cmd []string) (string, string, error) {
	if len(cmd) < 2 || strings.HasPrefix(cmd[1], "-") {
		return "", "", nil
	}
	filename := cmd[1]
	source, err := os.ReadFile(filepath.Join(scenarioDir, filename))
	if err != nil {
		return "", "", err
	}
	return string(source), filename, nil
}
