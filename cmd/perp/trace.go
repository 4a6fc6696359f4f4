package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/thomasrohde/perp/pkg/evaluator"
	"github.com/thomasrohde/perp/pkg/machine"
)

// traceMachineStep marks one executed machine instruction in a trace.
const traceMachineStep evaluator.TraceEventType = "machine_step"

// traceWriter writes interpreter and machine events to w as JSON lines.
type traceWriter struct {
	mu    sync.Mutex
	enc   *json.Encoder
	runID string
}

func newTraceWriter(w io.Writer, runID string) *traceWriter {
	return &traceWriter{enc: json.NewEncoder(w), runID: runID}
}

func (t *traceWriter) event(ev evaluator.TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.enc.Encode(ev)
}

func (t *traceWriter) step(ev machine.StepEvent) {
	t.event(evaluator.TraceEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     t.runID,
		Event:     traceMachineStep,
		Data: map[string]string{
			"pc":    strconv.Itoa(ev.PC),
			"instr": ev.Instr.String(),
			"depth": strconv.Itoa(ev.Depth),
		},
	})
}

type TraceSummary struct {
	RunID        string         `json:"runId"`
	TotalEvents  int            `json:"totalEvents"`
	Statements   int            `json:"statements"`
	Assignments  map[string]int `json:"assignments"`
	Prints       []int64        `json:"prints"`
	MachineSteps int            `json:"machineSteps"`
	OpsByName    map[string]int `json:"opsByName"`
	MaxDepth     int            `json:"maxDepth"`
	StartTime    string         `json:"startTime,omitempty"`
	EndTime      string         `json:"endTime,omitempty"`
	DurationMs   float64        `json:"durationMs"`
}

func computeTraceSummary(r io.Reader) *TraceSummary {
	summary := &TraceSummary{
		Assignments: make(map[string]int),
		OpsByName:   make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event evaluator.TraceEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip invalid lines
		}

		summary.TotalEvents++
		if summary.RunID == "" {
			summary.RunID = event.RunID
		}

		switch event.Event {
		case evaluator.TraceRunStart:
			if summary.StartTime == "" {
				summary.StartTime = event.Timestamp
			}
		case evaluator.TraceRunEnd:
			summary.EndTime = event.Timestamp
		case evaluator.TraceStmtEnd:
			summary.Statements++
			if name, ok := event.Data["name"]; ok {
				summary.Assignments[name]++
			} else if v, err := strconv.ParseInt(event.Data["value"], 10, 64); err == nil {
				summary.Prints = append(summary.Prints, v)
			}
		case traceMachineStep:
			summary.MachineSteps++
			if op := strings.Fields(event.Data["instr"]); len(op) > 0 {
				summary.OpsByName[op[0]]++
			}
			if d, err := strconv.Atoi(event.Data["depth"]); err == nil && d > summary.MaxDepth {
				summary.MaxDepth = d
			}
			// The machine runs after the interpreter; its steps extend the run.
			summary.EndTime = event.Timestamp
		}
	}

	if summary.StartTime != "" && summary.EndTime != "" {
		start, err1 := parseTime(summary.StartTime)
		end, err2 := parseTime(summary.EndTime)
		if err1 == nil && err2 == nil {
			summary.DurationMs = float64(end.Sub(start).Milliseconds())
		}
	}

	return summary
}

func printTraceSummaryText(w io.Writer, s *TraceSummary) {
	fmt.Fprintf(w, "Run: %s\n", s.RunID)
	fmt.Fprintf(w, "Events: %d\n", s.TotalEvents)
	fmt.Fprintf(w, "Statements: %d\n", s.Statements)
	for _, name := range sortedKeys(s.Assignments) {
		fmt.Fprintf(w, "  %s assigned %d times\n", name, s.Assignments[name])
	}
	fmt.Fprintf(w, "Prints: %v\n", s.Prints)
	fmt.Fprintf(w, "Machine: %d steps, max stack depth %d\n", s.MachineSteps, s.MaxDepth)
	for _, op := range sortedKeys(s.OpsByName) {
		fmt.Fprintf(w, "  %s: %d\n", op, s.OpsByName[op])
	}
	if s.DurationMs > 0 {
		fmt.Fprintf(w, "Duration: %.0fms\n", s.DurationMs)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, errors.Errorf("cannot parse time: %s", s)
}
