// Command perp is the Perp CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/inconshreveable/log15"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/thomasrohde/perp/pkg/config"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/formatter"
	"github.com/thomasrohde/perp/pkg/help"
	"github.com/thomasrohde/perp/pkg/lexer"
	"github.com/thomasrohde/perp/pkg/machine"
	"github.com/thomasrohde/perp/pkg/repl"
	"github.com/thomasrohde/perp/pkg/runtime"
)

// Process exit codes.
const (
	exitOK       = 0
	exitUsage    = 1
	exitParse    = 2
	exitRuntime  = 4
	exitMismatch = 5
)

// exitStatus is returned by command actions that already reported their
// failure and only need to set the process exit code.
type exitStatus int

func (s exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(s))
}

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "YAML or TOML configuration file",
	}
	prettyFlag = cli.BoolFlag{
		Name:  "pretty",
		Usage: "print diagnostics for humans instead of as JSON",
	}
	colorFlag = cli.StringFlag{
		Name:  "color",
		Usage: "colorize diagnostics: auto, always or never",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "log verbosity: crit, error, warn, info or debug",
	}

	modeFlag = cli.StringFlag{
		Name:  "mode",
		Usage: "execution path: interpret, compile or both",
	}
	showInfixFlag = cli.BoolFlag{
		Name:  "show-infix",
		Usage: "display the program in infix notation before running it",
	}
	showCodeFlag = cli.BoolFlag{
		Name:  "show-code",
		Usage: "display the compiled code before the machine runs it",
	}
	traceFlag = cli.StringFlag{
		Name:  "trace",
		Usage: "write execution events as JSON lines to this file",
	}
	outputFlag = cli.StringFlag{
		Name:  "o",
		Usage: "write the listing to this file instead of stdout",
	}
	stageFlag = cli.StringFlag{
		Name:  "stage",
		Value: "infix",
		Usage: "pipeline stage to emit: tokens, ast, infix or code",
	}
	textFlag = cli.BoolFlag{
		Name:  "text",
		Usage: "print the summary as text instead of JSON",
	}
	indexFlag = cli.BoolFlag{
		Name:  "index",
		Usage: "list the instruction set (machine) or operator table (operators)",
	}
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI with the given arguments and streams and returns the
// process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := newApp(&env{stdin: stdin, stdout: stdout, stderr: stderr})
	if err := app.Run(args); err != nil {
		var st exitStatus
		if errors.As(err, &st) {
			return int(st)
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	return exitOK
}

// env holds the streams of one CLI invocation.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// session is the per-command state derived from the global flags.
type session struct {
	*env
	cfg     *config.Config
	printer *diagnostics.Printer
	log     log15.Logger
}

func newApp(e *env) *cli.App {
	app := cli.NewApp()
	app.Name = "perp"
	app.Usage = "interpret and compile Perp prefix-notation programs"
	app.HideVersion = true
	app.Writer = e.stdout
	app.ErrWriter = e.stderr
	app.Flags = []cli.Flag{configFlag, prettyFlag, colorFlag, logLevelFlag, cli.HelpFlag}
	app.Action = func(ctx *cli.Context) error {
		if ctx.NArg() > 0 {
			fmt.Fprintf(e.stderr, "Unknown command: %s\n", ctx.Args().First())
			return exitStatus(exitUsage)
		}
		return cli.ShowAppHelp(ctx)
	}
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "Run a program on the interpreter, the machine or both",
			ArgsUsage: "<file>",
			Flags:     []cli.Flag{modeFlag, showInfixFlag, showCodeFlag, traceFlag},
			Action:    e.action(cmdRun),
		},
		{
			Name:      "check",
			Usage:     "Parse and validate a program without running it",
			ArgsUsage: "<file>",
			Action:    e.action(cmdCheck),
		},
		{
			Name:      "fmt",
			Usage:     "Print a program in infix notation",
			ArgsUsage: "<file>",
			Action:    e.action(cmdFmt),
		},
		{
			Name:      "compile",
			Usage:     "Compile a program and write its code listing",
			ArgsUsage: "<file>",
			Flags:     []cli.Flag{outputFlag},
			Action:    e.action(cmdCompile),
		},
		{
			Name:      "exec",
			Usage:     "Run a code listing on the machine",
			ArgsUsage: "<listing>",
			Action:    e.action(cmdExec),
		},
		{
			Name:      "emit",
			Usage:     "Print one pipeline stage of a program",
			ArgsUsage: "<file>",
			Flags:     []cli.Flag{stageFlag},
			Action:    e.action(cmdEmit),
		},
		{
			Name:      "verify",
			Usage:     "Run both execution paths and compare their results",
			ArgsUsage: "<file>",
			Action:    e.action(cmdVerify),
		},
		{
			Name:   "repl",
			Usage:  "Start an interactive session",
			Action: e.action(cmdRepl),
		},
		{
			Name:      "trace",
			Usage:     "Summarize a JSON lines trace written by run --trace",
			ArgsUsage: "<file.jsonl>",
			Flags:     []cli.Flag{textFlag},
			Action:    e.action(cmdTrace),
		},
		{
			Name:      "help",
			Usage:     "Show the language reference",
			ArgsUsage: "[topic]",
			Flags:     []cli.Flag{indexFlag},
			Action:    e.cmdHelp,
		},
		{
			Name:        "dumpconfig",
			Usage:       "Show configuration values",
			Description: `The dumpconfig command shows the effective configuration in TOML.`,
			Action:      e.action(cmdDumpConfig),
		},
	}
	return app
}

// action wraps a command so that it runs with configuration, logging and a
// diagnostics printer set up from the global flags.
func (e *env) action(fn func(ctx *cli.Context, s *session) error) func(ctx *cli.Context) error {
	return func(ctx *cli.Context) error {
		s, err := e.setup(ctx)
		if err != nil {
			diagnostics.NewPrinter(e.stderr, ctx.GlobalBool(prettyFlag.Name), false).
				Print(diagnostics.MakeDiag(diagnostics.EConfig, err.Error(), nil, nil, ""))
			return exitStatus(exitUsage)
		}
		return fn(ctx, s)
	}
}

func (e *env) setup(ctx *cli.Context) (*session, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := ctx.GlobalString(configFlag.Name); path != "" {
		cfg, err = config.Load(path)
	} else {
		cwd, _ := os.Getwd()
		cfg, _, err = config.Discover(cwd)
	}
	if err != nil {
		return nil, err
	}

	if ctx.GlobalBool(prettyFlag.Name) {
		cfg.Pretty = true
	}
	if c := ctx.GlobalString(colorFlag.Name); c != "" {
		cfg.Color = c
	}
	if l := ctx.GlobalString(logLevelFlag.Name); l != "" {
		cfg.LogLevel = l
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	colored := useColor(cfg.Color, e.stderr)
	errOut := e.stderr
	if f, ok := e.stderr.(*os.File); ok && colored {
		errOut = colorable.NewColorable(f)
	}

	lvl, _ := log15.LvlFromString(cfg.LogLevel)
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(errOut, log15.TerminalFormat())))

	return &session{
		env:     e,
		cfg:     cfg,
		printer: diagnostics.NewPrinter(errOut, cfg.Pretty, colored),
		log:     log15.New("module", "cli"),
	}, nil
}

func useColor(setting string, w io.Writer) bool {
	switch setting {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// fail prints err as a diagnostic and returns the exit status for its code.
func (s *session) fail(err error) error {
	d := diagnostics.FromError(err, diagnostics.EIO)
	s.printer.Print(d)
	return exitStatus(exitCodeForDiag(d.Code))
}

func exitCodeForDiag(code string) int {
	switch code {
	case diagnostics.ELex, diagnostics.EUnknownStmt, diagnostics.EUnknownToken,
		diagnostics.ETruncated, diagnostics.EBadTarget, diagnostics.ETrailing,
		diagnostics.EAssemble:
		return exitParse
	case diagnostics.EIO, diagnostics.EConfig:
		return exitUsage
	default:
		return exitRuntime
	}
}

func (s *session) usage(ctx *cli.Context) error {
	fmt.Fprintf(s.stderr, "usage: perp %s [options] %s\n", ctx.Command.Name, ctx.Command.ArgsUsage)
	return exitStatus(exitUsage)
}

// readSource reads the file named by the first argument, or stdin for "-".
func (s *session) readSource(ctx *cli.Context) (string, string, error) {
	file := ctx.Args().First()
	if file == "-" {
		data, err := io.ReadAll(s.stdin)
		if err != nil {
			return "", "", diagnostics.Report(diagnostics.EIO, "cannot read stdin", err.Error())
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", "", diagnostics.Report(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), errors.Cause(err).Error())
	}
	return string(data), file, nil
}

// signalContext returns a context canceled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func cmdRun(ctx *cli.Context, s *session) error {
	if ctx.NArg() != 1 {
		return s.usage(ctx)
	}
	source, filename, err := s.readSource(ctx)
	if err != nil {
		return s.fail(err)
	}

	mode := s.cfg.Mode
	if m := ctx.String(modeFlag.Name); m != "" {
		mode = m
	}
	showInfix, showCode := s.cfg.ShowInfix, s.cfg.ShowCode
	if ctx.IsSet(showInfixFlag.Name) {
		showInfix = ctx.Bool(showInfixFlag.Name)
	}
	if ctx.IsSet(showCodeFlag.Name) {
		showCode = ctx.Bool(showCodeFlag.Name)
	}

	runID := "run-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	opts := []runtime.Option{
		runtime.WithOutput(s.stdout),
		runtime.WithLogger(s.log.New("run", runID)),
		runtime.WithRunID(runID),
		runtime.WithConfig(s.cfg),
		runtime.WithDisplay(showInfix, showCode),
	}
	if path := ctx.String(traceFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return s.fail(diagnostics.Report(diagnostics.EIO, "cannot create trace file", path))
		}
		defer f.Close()
		tw := newTraceWriter(f, runID)
		opts = append(opts, runtime.WithTrace(tw.event), runtime.WithStepTrace(tw.step))
	}

	c, cancel := signalContext()
	defer cancel()
	if err := runtime.New(opts...).Run(c, source, filename, mode); err != nil {
		return s.fail(err)
	}
	return nil
}

func cmdCheck(ctx *cli.Context, s *session) error {
	if ctx.NArg() != 1 {
		return s.usage(ctx)
	}
	source, filename, err := s.readSource(ctx)
	if err != nil {
		return s.fail(err)
	}

	diags := runtime.New(runtime.WithLogger(s.log)).Check(source, filename)
	if len(diags) > 0 {
		s.printer.Print(diags...)
		return exitStatus(exitParse)
	}

	if s.cfg.Pretty {
		fmt.Fprintln(s.stdout, "No errors found.")
	} else {
		fmt.Fprintln(s.stdout, "[]")
	}
	return nil
}

func cmdFmt(ctx *cli.Context, s *session) error {
	if ctx.NArg() != 1 {
		return s.usage(ctx)
	}
	source, filename, err := s.readSource(ctx)
	if err != nil {
		return s.fail(err)
	}
	tree, err := runtime.New().ParseSource(source, filename)
	if err != nil {
		return s.fail(err)
	}
	if err := formatter.WriteNode(s.stdout, tree); err != nil {
		return s.fail(diagnostics.Report(diagnostics.EIO, "cannot write output", err.Error()))
	}
	return nil
}

func cmdCompile(ctx *cli.Context, s *session) error {
	if ctx.NArg() != 1 {
		return s.usage(ctx)
	}
	source, filename, err := s.readSource(ctx)
	if err != nil {
		return s.fail(err)
	}
	code, err := runtime.New(runtime.WithLogger(s.log), runtime.WithCacheSize(0)).CompileSource(source, filename)
	if err != nil {
		return s.fail(err)
	}

	out := s.stdout
	if path := ctx.String(outputFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return s.fail(diagnostics.Report(diagnostics.EIO, "cannot create output file", path))
		}
		defer f.Close()
		out = f
	}
	if err := machine.Listing(out, code); err != nil {
		return s.fail(diagnostics.Report(diagnostics.EIO, "cannot write listing", err.Error()))
	}
	return nil
}

func cmdExec(ctx *cli.Context, s *session) error {
	if ctx.NArg() != 1 {
		return s.usage(ctx)
	}
	source, filename, err := s.readSource(ctx)
	if err != nil {
		return s.fail(err)
	}
	code, err := machine.Assemble(strings.NewReader(source), filename)
	if err != nil {
		return s.fail(err)
	}

	c, cancel := signalContext()
	defer cancel()
	rt := runtime.New(runtime.WithOutput(s.stdout), runtime.WithLogger(s.log))
	if _, err := rt.RunMachine(c, code); err != nil {
		return s.fail(err)
	}
	return nil
}

func cmdEmit(ctx *cli.Context, s *session) error {
	if ctx.NArg() != 1 {
		return s.usage(ctx)
	}
	source, filename, err := s.readSource(ctx)
	if err != nil {
		return s.fail(err)
	}

	stage := ctx.String(stageFlag.Name)
	if stage == "tokens" {
		tokens, err := lexer.Tokenize(source, filename)
		if err != nil {
			var le *lexer.LexError
			if errors.As(err, &le) {
				err = &diagnostics.Error{Diag: le.Diag}
			}
			return s.fail(err)
		}
		for _, tok := range tokens {
			fmt.Fprintf(s.stdout, "%d:%d\t%s\t%s\n", tok.Span.StartLine, tok.Span.StartCol, tok.Type, tok.Value)
		}
		return nil
	}

	rt := runtime.New(runtime.WithOutput(s.stdout), runtime.WithLogger(s.log))
	tree, err := rt.ParseSource(source, filename)
	if err != nil {
		return s.fail(err)
	}
	switch stage {
	case "ast":
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}
		cfg.Fdump(s.stdout, tree)
	case "infix":
		err = formatter.WriteNode(s.stdout, tree)
	case "code":
		code, cerr := rt.Compile(tree)
		if cerr != nil {
			return s.fail(cerr)
		}
		err = machine.Listing(s.stdout, code)
	default:
		fmt.Fprintf(s.stderr, "unknown stage %q (want tokens, ast, infix or code)\n", stage)
		return exitStatus(exitUsage)
	}
	if err != nil {
		return s.fail(diagnostics.Report(diagnostics.EIO, "cannot write output", err.Error()))
	}
	return nil
}

func cmdVerify(ctx *cli.Context, s *session) error {
	if ctx.NArg() != 1 {
		return s.usage(ctx)
	}
	source, filename, err := s.readSource(ctx)
	if err != nil {
		return s.fail(err)
	}
	rt := runtime.New(runtime.WithLogger(s.log))
	tree, err := rt.ParseSource(source, filename)
	if err != nil {
		return s.fail(err)
	}

	c, cancel := signalContext()
	defer cancel()
	v, err := rt.Verify(c, tree)
	if err != nil {
		return s.fail(err)
	}

	writeOutcome(s.stdout, "interpreter", v.Interpreter)
	writeOutcome(s.stdout, "machine", v.Machine)
	if !v.Agree {
		fmt.Fprintln(s.stdout, "Execution paths disagree.")
		return exitStatus(exitMismatch)
	}
	fmt.Fprintln(s.stdout, "Execution paths agree.")
	return nil
}

func writeOutcome(w io.Writer, name string, o runtime.Outcome) {
	fmt.Fprintf(w, "%-12s prints %v", name+":", o.Prints)
	if o.Table != nil {
		fmt.Fprintf(w, " table %v", o.Table.Snapshot())
	}
	if o.Code != "" {
		fmt.Fprintf(w, " error %s", o.Code)
	}
	fmt.Fprintln(w)
}

func cmdRepl(ctx *cli.Context, s *session) error {
	c, cancel := signalContext()
	defer cancel()
	sess := repl.NewSession(s.stdout, s.log.New("module", "repl"))
	if err := repl.Run(c, sess, s.printer, s.cfg.HistoryFile); err != nil {
		fmt.Fprintln(s.stderr, err)
		return exitStatus(exitUsage)
	}
	return nil
}

func cmdTrace(ctx *cli.Context, s *session) error {
	if ctx.NArg() != 1 {
		return s.usage(ctx)
	}
	f, err := os.Open(ctx.Args().First())
	if err != nil {
		return s.fail(diagnostics.Report(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", ctx.Args().First()), nil))
	}
	defer f.Close()

	summary := computeTraceSummary(f)
	if ctx.Bool(textFlag.Name) {
		printTraceSummaryText(s.stdout, summary)
		return nil
	}
	b, _ := json.Marshal(summary)
	fmt.Fprintln(s.stdout, string(b))
	return nil
}

func (e *env) cmdHelp(ctx *cli.Context) error {
	topic := ctx.Args().First()
	if topic == "" {
		fmt.Fprint(e.stdout, help.QUICKREF)
		return nil
	}

	name, content, err := help.MatchTopic(topic)
	if err != nil {
		fmt.Fprintf(e.stderr, "%s\nAvailable topics: %s\n", err, strings.Join(help.TopicList, ", "))
		return exitStatus(exitUsage)
	}
	if ctx.Bool(indexFlag.Name) {
		switch name {
		case "machine":
			fmt.Fprint(e.stdout, help.MachineIndex())
		case "operators":
			fmt.Fprint(e.stdout, help.OperatorIndex())
		default:
			fmt.Fprintln(e.stderr, "error: --index is only supported for the machine and operators topics")
			return exitStatus(exitUsage)
		}
		return nil
	}
	fmt.Fprint(e.stdout, content)
	return nil
}

func cmdDumpConfig(ctx *cli.Context, s *session) error {
	if err := s.cfg.WriteTOML(s.stdout); err != nil {
		return s.fail(diagnostics.Report(diagnostics.EIO, "cannot write configuration", err.Error()))
	}
	return nil
}
