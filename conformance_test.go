package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thomasrohde/perp/internal/testutil"
	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/runtime"
)

func TestConformance(t *testing.T) {
	dirs, err := testutil.ListScenarios(testutil.ScenariosDir)
	if err != nil {
		t.Fatalf("failed to list scenarios: %v", err)
	}
	if len(dirs) == 0 {
		t.Fatal("no scenarios found")
	}

	for _, dir := range dirs {
		dir := dir
		t.Run(filepath.Base(dir), func(t *testing.T) {
			scenario, err := testutil.LoadScenario(dir)
			if err != nil {
				t.Fatalf("failed to load scenario: %v", err)
			}

			source, filename, err := testutil.ReadProgramFile(dir, scenario.Cmd)
			if err != nil {
				t.Fatalf("failed to read program file: %v", err)
			}

			switch scenario.Cmd[0] {
			case "check":
				runCheckScenario(t, source, filename, scenario)
			case "run":
				runRunScenario(t, source, filename, scenario)
			default:
				t.Skipf("unsupported command: %s", scenario.Cmd[0])
			}
		})
	}
}

func parseScenario(rt *runtime.Runtime, source, filename string, scenario *testutil.Scenario) (*ast.ActionSequence, error) {
	if scenario.Tokens != nil {
		return rt.Parse(scenario.Tokens)
	}
	return rt.ParseSource(source, filename)
}

func runCheckScenario(t *testing.T, source, filename string, scenario *testutil.Scenario) {
	t.Helper()

	rt := runtime.New()
	diags := rt.Check(source, filename)
	actualExit := 0
	if len(diags) > 0 {
		actualExit = 2
	}
	if scenario.Expect.ExitCode != actualExit {
		t.Errorf("exit code: got %d, want %d (%v)", actualExit, scenario.Expect.ExitCode, diags)
	}
	checkDiagExpectations(t, diags, scenario)
}

func runRunScenario(t *testing.T, source, filename string, scenario *testutil.Scenario) {
	t.Helper()
	ctx := context.Background()

	var out bytes.Buffer
	rt := runtime.New(runtime.WithOutput(&out), runtime.WithDisplay(true, true))

	tree, err := parseScenario(rt, source, filename, scenario)
	if err != nil {
		checkError(t, err, scenario, 2)
		return
	}

	code, err := rt.Compile(tree)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if scenario.Expect.Code != nil {
		got := make([]string, len(code))
		for i, in := range code {
			got[i] = in.String()
		}
		if diff := cmp.Diff(scenario.Expect.Code, got); diff != "" {
			t.Errorf("code mismatch (-want +got):\n%s", diff)
		}
	}

	verdict, err := rt.Verify(ctx, tree)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verdict.Agree {
		t.Errorf("execution paths disagree: interpreter %+v, machine %+v", verdict.Interpreter, verdict.Machine)
	}
	if scenario.Expect.Prints != nil {
		for name, outcome := range map[string]runtime.Outcome{"interpreter": verdict.Interpreter, "machine": verdict.Machine} {
			if diff := cmp.Diff(scenario.Expect.Prints, outcome.Prints, cmp.Comparer(func(a, b []int64) bool {
				return len(a) == 0 && len(b) == 0 || cmp.Equal(a, b)
			})); diff != "" {
				t.Errorf("%s prints mismatch (-want +got):\n%s", name, diff)
			}
		}
	}
	if scenario.Expect.Table != nil {
		for name, outcome := range map[string]runtime.Outcome{"interpreter": verdict.Interpreter, "machine": verdict.Machine} {
			if diff := cmp.Diff(scenario.Expect.Table, outcome.Table.Snapshot()); diff != "" {
				t.Errorf("%s table mismatch (-want +got):\n%s", name, diff)
			}
		}
	}

	// Full console run in the requested mode.
	runErr := rt.Run(ctx, sourceFor(source, scenario), filename, scenario.Mode())
	if runErr != nil {
		checkError(t, runErr, scenario, exitCodeForError(diagnostics.CodeOf(runErr)))
	} else if scenario.Expect.ExitCode != 0 {
		t.Errorf("exit code: got 0, want %d", scenario.Expect.ExitCode)
	}
	for _, want := range scenario.Expect.Stdout {
		if !strings.Contains(out.String(), want) {
			t.Errorf("stdout should contain %q, got:\n%s", want, out.String())
		}
	}
}

// sourceFor returns program text for Runtime.Run. Token scenarios are
// joined with blanks, which the lexer splits back into the same tokens.
func sourceFor(source string, scenario *testutil.Scenario) string {
	if scenario.Tokens != nil {
		return strings.Join(scenario.Tokens, " ")
	}
	return source
}

func checkError(t *testing.T, err error, scenario *testutil.Scenario, exitCode int) {
	t.Helper()

	if scenario.Expect.ExitCode != exitCode {
		t.Errorf("exit code: got %d, want %d (error: %v)", exitCode, scenario.Expect.ExitCode, err)
	}
	d := diagnostics.FromError(err, "")
	if want := scenario.Expect.Error; want != nil {
		if d.Code != want.Code {
			t.Errorf("error code: got %s, want %s", d.Code, want.Code)
		}
		if want.Value != nil && fmt.Sprint(want.Value) != fmt.Sprint(d.Value) {
			t.Errorf("error value: got %v, want %v", d.Value, want.Value)
		}
	}
	checkDiagExpectations(t, []diagnostics.Diagnostic{d}, scenario)
}

func checkDiagExpectations(t *testing.T, diags []diagnostics.Diagnostic, scenario *testutil.Scenario) {
	t.Helper()

	if scenario.Expect.Diags == nil {
		return
	}

	diagsJSON, _ := json.Marshal(diags)
	var actualDiags []map[string]any
	if err := json.Unmarshal(diagsJSON, &actualDiags); err != nil {
		t.Fatalf("failed to parse actual diagnostics: %v", err)
	}

	for _, expected := range scenario.Expect.Diags {
		found := false
		for _, actual := range actualDiags {
			if isSubset(expected, actual) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("diagnostic subset not found: %v in %s", expected, diagsJSON)
		}
	}
}

func exitCodeForError(code string) int {
	switch code {
	case diagnostics.ELex, diagnostics.EUnknownStmt, diagnostics.EUnknownToken,
		diagnostics.ETruncated, diagnostics.EBadTarget, diagnostics.ETrailing:
		return 2
	case diagnostics.EIO, diagnostics.EConfig:
		return 1
	default:
		return 4
	}
}

// isSubset checks if expected is a subset of actual. Scalars are compared
// by their printed form, since YAML and JSON decode numbers differently.
func isSubset(expected, actual any) bool {
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range e {
			av, exists := a[k]
			if !exists {
				return false
			}
			if !isSubset(ev, av) {
				return false
			}
		}
		return true

	case []any:
		a, ok := actual.([]any)
		if !ok {
			return false
		}
		if len(e) > len(a) {
			return false
		}
		for i, ev := range e {
			if !isSubset(ev, a[i]) {
				return false
			}
		}
		return true

	case nil:
		return actual == nil

	default:
		return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
	}
}

// Verify scenarios directory exists
func TestScenariosExist(t *testing.T) {
	root := testutil.ScenariosDir
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("scenarios directory not found: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("scenarios path is not a directory: %s", root)
	}
}
