package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
	"go.uber.org/zap"

	"fdtrace/internal/config"
	"fdtrace/internal/model"
	"fdtrace/internal/trace"
	"fdtrace/internal/tui"
	"fdtrace/internal/web"
)

func checkUpdate(currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      "fdtrace",
		Repository: "fdtrace",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		return // Silently fail
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Println("👉 Download it from https://github.com/fdtrace/fdtrace/releases")
	} else {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

// source is where the trace comes from: a file, stdin, or a live run.
type source struct {
	path string   // Trace file, set to the recorded trace after --run; empty for stdin
	argv []string // Command for --run
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fdtrace [options] [trace-file | -]\n")
		fmt.Fprintf(os.Stderr, "       fdtrace [options] --run -- command [args...]\n\n")
		fmt.Fprintf(os.Stderr, "fdtrace replays an strace log and reports which files the process\n")
		fmt.Fprintf(os.Stderr, "read and wrote, aggregated into a directory tree.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  strace -o make.strace make && fdtrace make.strace\n")
		fmt.Fprintf(os.Stderr, "  fdtrace -x -- make           # Trace make and print the report\n")
		fmt.Fprintf(os.Stderr, "  fdtrace -t make.strace       # Browse the tree interactively\n")
		fmt.Fprintf(os.Stderr, "  fdtrace -v -o r.txt t.strace # Save a verbose report\n")
		fmt.Fprintf(os.Stderr, "  fdtrace --json - < t.strace  # Analysis as JSON from stdin\n")
	}

	runFlag := pflag.BoolP("run", "x", false, "Trace the command after -- instead of reading a trace")
	jsonFlag := pflag.BoolP("json", "j", false, "Output raw analysis data as JSON")
	pflag.BoolP("report", "r", true, "Print the text report (default mode)")
	tuiFlag := pflag.BoolP("tui", "t", false, "Browse the result interactively")
	webFlag := pflag.BoolP("web", "w", false, "Serve the result over HTTP")
	pflag.String("addr", "localhost:8080", "Listen address for --web")
	pflag.StringP("output", "o", "", "Save the report to the specified file")
	pflag.BoolP("verbose", "v", false, "Add diagnostics, observations and ignored syscalls to the report")
	pflag.Bool("no-color", false, "Disable coloured output")
	pflag.String("cwd", "/", "Directory relative paths in the trace are resolved against")
	pflag.String("strace", "strace", "strace binary used by --run")
	configFlag := pflag.StringP("config", "c", "", "Config file (default ./fdtrace.yaml or ~/.config/fdtrace/fdtrace.yaml)")
	pflag.String("log-level", "warn", "Log level: debug, info, warn, error")
	pflag.String("log-file", "", "Write logs to this file instead of stderr")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for latest version")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("fdtrace version %s\n", model.Version)
		return
	}

	if *updateFlag {
		checkUpdate(model.Version)
		return
	}

	cfg, err := config.Load(*configFlag, pflag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Log lines would tear the alternate screen apart
	logger := zap.NewNop()
	if !*tuiFlag || cfg.Log.File != "" {
		if logger, err = config.NewLogger(cfg.Log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	}
	defer logger.Sync()

	src, err := sourceFromArgs(*runFlag, pflag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		pflag.Usage()
		os.Exit(2)
	}
	if *tuiFlag && src.path == "" && len(src.argv) == 0 {
		// The browser needs the terminal's stdin to itself
		fmt.Fprintf(os.Stderr, "Error: --tui cannot read the trace from stdin\n")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The live trace is kept on disk so reports can quote it; removed on exit
	cleanup := func() {}
	defer func() { cleanup() }()

	if len(src.argv) > 0 {
		run, err := traceCommand(ctx, cfg, src.argv, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cleanup = func() { run.Close() }
		src.path = run.Path
	}

	reg := prometheus.NewRegistry()
	load := func() (trace.Result, error) {
		return analyze(ctx, cfg, src, reg, logger)
	}

	switch {
	case *tuiFlag:
		err = tui.Run(load)
	case *webFlag:
		err = runWebMode(ctx, cfg, src, load, reg, logger)
	case *jsonFlag:
		err = runJsonMode(load)
	default:
		err = runReportMode(cfg, src, load)
	}
	if err != nil {
		cleanup()
		logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func sourceFromArgs(run bool, args []string) (source, error) {
	if run {
		if len(args) == 0 {
			return source{}, errors.New("--run needs a command")
		}
		return source{argv: args}, nil
	}
	switch len(args) {
	case 0:
		return source{}, errors.New("no trace file given (use - for stdin)")
	case 1:
		if args[0] == "-" {
			return source{}, nil
		}
		return source{path: args[0]}, nil
	}
	return source{}, fmt.Errorf("expected one trace file, got %d arguments", len(args))
}

// traceCommand runs argv under the configured tracer and returns the
// finished trace.
func traceCommand(ctx context.Context, cfg *config.Config, argv []string, logger *zap.Logger) (*trace.Run, error) {
	tracer := trace.DetectTracer(cfg.Strace.Path, cfg.Strace.StringLimit)
	logger.Info("tracing", zap.String("tracer", tracer.Name()), zap.Strings("argv", argv))

	run, err := trace.RunTrace(ctx, tracer, argv)
	if err != nil {
		return nil, err
	}
	if run.Err != nil {
		// The traced command failing is its business, not ours
		logger.Warn("traced command", zap.Error(run.Err))
	}
	return run, nil
}

// analyze reads the trace, replays it and returns the aggregated result.
// Only an unreadable or unsupported trace is an error.
func analyze(ctx context.Context, cfg *config.Config, src source, reg prometheus.Registerer, logger *zap.Logger) (trace.Result, error) {
	var r io.ReadCloser = io.NopCloser(os.Stdin)
	if src.path != "" {
		f, err := os.Open(src.path)
		if err != nil {
			return trace.Result{}, err
		}
		r = f
	}
	defer r.Close()

	parser := trace.NewParser(logger)
	events, errs := parser.Parse(r)

	analyzer := trace.NewAnalyzer(cfg.Cwd, logger, trace.NewMetrics(reg))
	result, err := analyzer.AnalyzeStream(ctx, events)
	if err != nil {
		// Drain so the parser goroutine can exit
		go func() {
			for range events {
			}
		}()
		return trace.Result{}, err
	}
	if err := <-errs; err != nil {
		return trace.Result{}, fmt.Errorf("read trace: %w", err)
	}

	logger.Debug("parsed",
		zap.Int("lines", parser.Lines),
		zap.Int("skipped", parser.Skipped),
		zap.Int("unparsed", parser.Unparsed),
	)
	return result, nil
}

func runReportMode(cfg *config.Config, src source, load tui.LoadFunc) error {
	result, err := load()
	if err != nil {
		return err
	}

	color := cfg.Color && cfg.Output == ""
	report := trace.GenerateReport(result, trace.ReportOptions{
		Verbose:   cfg.Verbose,
		Color:     color,
		TracePath: src.path,
	})

	if cfg.Output != "" {
		if err := os.WriteFile(cfg.Output, []byte(report), 0644); err != nil {
			return fmt.Errorf("writing report to %s: %w", cfg.Output, err)
		}
		fmt.Printf("Report saved to %s\n", cfg.Output)
		return nil
	}
	fmt.Println(report)
	return nil
}

func runJsonMode(load tui.LoadFunc) error {
	result, err := load()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runWebMode(ctx context.Context, cfg *config.Config, src source, load tui.LoadFunc, reg *prometheus.Registry, logger *zap.Logger) error {
	result, err := load()
	if err != nil {
		return err
	}

	fmt.Printf("Serving on http://%s (ctrl+c to stop)\n", cfg.Web.Addr)
	srv := web.NewServer(result, src.path, reg, logger)
	return srv.ListenAndServe(ctx, cfg.Web.Addr)
}
