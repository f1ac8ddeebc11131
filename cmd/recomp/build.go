package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"recomp/internal/buildpipeline"
	"recomp/internal/config"
	"recomp/internal/hir"
	"recomp/internal/observ"
	"recomp/internal/script"
	"recomp/internal/snapshot"
	"recomp/internal/symbol"
	"recomp/internal/trace"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] script.toml...",
	Short: "Build the functions of one or more scripts",
	Long: `Build replays every function of each script through the HIR builder,
finalizes and validates it, and stores the snapshot in the cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: buildExecution,
}

func init() {
	buildCmd.Flags().StringSlice("func", nil, "build only these functions")
	buildCmd.Flags().IntP("jobs", "j", 0, "parallel workers; overrides [build].jobs")
	buildCmd.Flags().Bool("no-cache", false, "neither read nor write the snapshot cache")
	buildCmd.Flags().Bool("no-validate", false, "skip structural validation")
	buildCmd.Flags().Bool("keep-going", false, "build every function even after a failure")
	buildCmd.Flags().Bool("dump", false, "print the HIR of each built function")
	buildCmd.Flags().String("out", "", "write each snapshot as <dir>/<func>.mp")
	buildCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

type buildFlags struct {
	only       []string
	jobs       int
	noCache    bool
	noValidate bool
	keepGoing  bool
	dump       bool
	outDir     string
	ui         uiMode
	quiet      bool
	timings    bool
}

func readBuildFlags(cmd *cobra.Command) (buildFlags, error) {
	var (
		f   buildFlags
		err error
	)
	flags := cmd.Flags()
	if f.only, err = flags.GetStringSlice("func"); err != nil {
		return f, err
	}
	if f.jobs, err = flags.GetInt("jobs"); err != nil {
		return f, err
	}
	if f.noCache, err = flags.GetBool("no-cache"); err != nil {
		return f, err
	}
	if f.noValidate, err = flags.GetBool("no-validate"); err != nil {
		return f, err
	}
	if f.keepGoing, err = flags.GetBool("keep-going"); err != nil {
		return f, err
	}
	if f.dump, err = flags.GetBool("dump"); err != nil {
		return f, err
	}
	if f.outDir, err = flags.GetString("out"); err != nil {
		return f, err
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return f, err
	}
	if f.ui, err = readUIMode(uiValue); err != nil {
		return f, err
	}
	if f.quiet, err = cmd.Root().PersistentFlags().GetBool("quiet"); err != nil {
		return f, err
	}
	if f.timings, err = cmd.Root().PersistentFlags().GetBool("timings"); err != nil {
		return f, err
	}
	return f, nil
}

// loadConfig reads --config when given, otherwise searches upwards from
// the first script's directory.
func loadConfig(cmd *cobra.Command, firstScript string) (config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	if path != "" {
		return config.Load(path)
	}
	return config.Discover(filepath.Dir(firstScript))
}

func buildExecution(cmd *cobra.Command, args []string) error {
	flags, err := readBuildFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if flags.jobs > 0 {
		cfg.Build.Jobs = flags.jobs
	}
	if flags.noValidate {
		cfg.Build.Validate = false
	}

	logLevel, err := flagOr(cmd, "log-level", cfg.Log.Level)
	if err != nil {
		return err
	}
	log, err := newLogger(logLevel, flags.quiet)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	defer func() { _ = log.Sync() }()
	hir.SetLogger(log)

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	cleanupTrace, err := setupTracing(cmd, cfg.Trace)
	if err != nil {
		return err
	}
	defer cleanupTrace()

	var cache *snapshot.DiskCache
	if cfg.Cache.Enabled && !flags.noCache {
		cache, err = snapshot.OpenDiskCache(cfg.Cache.Dir)
		if err != nil {
			log.Warn("snapshot cache unavailable", zap.String("dir", cfg.Cache.Dir), zap.Error(err))
		}
	}

	timer := observ.NewTimer()
	syms := symbol.NewTable()
	out := cmd.OutOrStdout()
	var failed error
	for _, path := range args {
		err := buildScript(cmd, path, &buildpipeline.Request{
			Only:      flags.only,
			Config:    &cfg,
			Symbols:   syms,
			Cache:     cache,
			Logger:    log,
			Timer:     timer,
			KeepGoing: flags.keepGoing,
		}, flags)
		if err != nil {
			failed = err
			if !flags.keepGoing {
				break
			}
		}
	}

	if failed != nil {
		dumpRing(cmd)
	}
	if flags.timings {
		printTimings(out, timer)
	}
	return failed
}

func buildScript(cmd *cobra.Command, path string, req *buildpipeline.Request, flags buildFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	idx := req.Timer.Begin("parse " + filepath.Base(path))
	file, err := script.ParseFile(path)
	req.Timer.End(idx, "")
	if err != nil {
		return err
	}
	req.Script = file

	if flags.dump {
		var mu sync.Mutex
		req.Dump = func(name string, b *hir.Builder) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "; function %s\n", name)
			if err := hir.Dump(out, b); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "dump %s: %v\n", name, err)
			}
		}
	}

	names := req.Only
	if len(names) == 0 {
		for _, fn := range file.Funcs {
			names = append(names, fn.Name)
		}
	}

	var res buildpipeline.Result
	if shouldUseTUI(flags.ui) && !flags.quiet && !flags.dump {
		res, err = runBuildWithUI(ctx, "recomp build "+filepath.Base(path), names, req)
	} else {
		res, err = buildpipeline.Build(ctx, req)
	}
	if !flags.quiet {
		printResults(out, res)
	}
	if flags.outDir != "" {
		if werr := writeSnapshots(flags.outDir, res); werr != nil {
			return werr
		}
	}
	trace.Point(ctx, trace.ScopeDriver, "script", fmt.Sprintf("%s: %d funcs, %d failed", path, len(res.Funcs), res.Failed()))
	return err
}

// writeSnapshots stores every built snapshot of res under dir.
func writeSnapshots(dir string, res buildpipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, f := range res.Funcs {
		if f.Snapshot == nil {
			continue
		}
		data, err := snapshot.Marshal(f.Snapshot)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		file := f.Name + ".mp"
		if !filepath.IsLocal(file) || filepath.Base(file) != file {
			return fmt.Errorf("%s: function name is not a plain file name", f.Name)
		}
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

func printResults(out io.Writer, res buildpipeline.Result) {
	ok := color.New(color.FgGreen).SprintFunc()
	cached := color.New(color.FgCyan).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	for _, f := range res.Funcs {
		switch {
		case f.Err != nil:
			fmt.Fprintf(out, "%s %s: %v\n", bad("FAIL  "), f.Name, f.Err)
		case f.Cached:
			fmt.Fprintf(out, "%s %s\n", cached("cached"), f.Name)
		case f.Snapshot != nil:
			fmt.Fprintf(out, "%s %s (%d blocks, %d instrs, %s)\n",
				ok("ok    "), f.Name, len(f.Snapshot.Blocks), f.Snapshot.InstrCount(), f.Elapsed.Round(time.Microsecond))
		}
	}
}

// dumpRing writes the recent trace events kept in memory to stderr.
func dumpRing(cmd *cobra.Command) {
	var ring *trace.RingTracer
	switch t := trace.FromContext(cmd.Context()).(type) {
	case *trace.RingTracer:
		ring = t
	case *trace.MultiTracer:
		ring = t.Ring()
	}
	if ring == nil {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "recent trace events:")
	if err := ring.Dump(cmd.ErrOrStderr(), trace.FormatText); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: %v\n", err)
	}
}
