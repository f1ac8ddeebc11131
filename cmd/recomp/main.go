// Command recomp builds HIR function scripts and inspects the opcode
// catalog.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"recomp/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "recomp",
	Short:         "HIR builder for the recompiler pipeline",
	Long:          `recomp replays function scripts through the HIR builder, finalizes and validates them, and caches the snapshots.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		mode, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return err
		}
		return applyColorMode(mode)
	},
}

func init() {
	rootCmd.Version = version.Get().Version

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(opcodesCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.String("config", "", "path to recomp.toml (default: search upwards from the script)")
	flags.String("log-level", "", "log level (debug|info|warn|error); overrides [log].level")

	flags.String("trace", "", "trace output file (- for stderr); overrides [trace].output")
	flags.String("trace-level", "", "trace level (off|error|phase|func|debug); overrides [trace].level")
	flags.String("trace-mode", "", "trace storage (stream|ring|both); overrides [trace].mode")
	flags.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	flags.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval")

	flags.String("cpu-profile", "", "write a CPU profile to file")
	flags.String("mem-profile", "", "write a heap profile to file on exit")
	flags.String("runtime-trace", "", "write a Go execution trace to file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: ")
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func applyColorMode(value string) error {
	mode, err := choice("color", value, "auto", "on", "off")
	if err != nil {
		return err
	}
	color.NoColor = mode == "off" || mode == "auto" && !isTerminal(os.Stdout)
	return nil
}
