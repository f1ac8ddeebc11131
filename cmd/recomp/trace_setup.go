package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"recomp/internal/config"
	"recomp/internal/trace"
)

// flagOr returns the named persistent string flag when it was set on the
// command line and fallback otherwise.
func flagOr(cmd *cobra.Command, name, fallback string) (string, error) {
	flags := cmd.Root().PersistentFlags()
	v, err := flags.GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	if !flags.Changed(name) {
		return fallback, nil
	}
	return v, nil
}

// setupTracing attaches a tracer built from [trace] and the --trace* flags
// to the command context. The returned cleanup flushes and closes it.
func setupTracing(cmd *cobra.Command, cfg config.TraceConfig) (func(), error) {
	root := cmd.Root()

	levelStr, err := flagOr(cmd, "trace-level", cfg.Level)
	if err != nil {
		return nil, err
	}
	modeStr, err := flagOr(cmd, "trace-mode", cfg.Mode)
	if err != nil {
		return nil, err
	}
	output, err := flagOr(cmd, "trace", cfg.Output)
	if err != nil {
		return nil, err
	}
	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := root.PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	// --trace alone turns tracing on at phase level.
	if level == trace.LevelOff && root.PersistentFlags().Changed("trace") {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: output,
		RingSize:   ringSize,
		Heartbeat:  heartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval, memStatus)
	}

	return func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

// memStatus summarizes heap use for heartbeat events; builder arenas are
// the main consumer.
func memStatus() string {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return fmt.Sprintf("heap=%dKiB goroutines=%d", ms.HeapInuse>>10, runtime.NumGoroutine())
}
