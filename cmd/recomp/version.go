package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"recomp/internal/opcode"
	"recomp/internal/snapshot"
	"recomp/internal/version"
)

// versionReport is the JSON form of `recomp version`. Schema and Opcodes
// identify which snapshots and scripts this binary can consume.
type versionReport struct {
	version.Info
	Schema  uint16 `json:"snapshot_schema"`
	Opcodes int    `json:"opcodes"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show recomp build metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}
		if format, err = choice("format", format, "pretty", "json"); err != nil {
			return err
		}
		full, err := cmd.Flags().GetBool("full")
		if err != nil {
			return err
		}

		rep := versionReport{
			Info:    version.Get(),
			Schema:  snapshot.SchemaVersion,
			Opcodes: opcode.Count(),
		}
		if !full {
			rep.GitCommit, rep.GitMessage, rep.BuildDate = "", "", ""
		}
		if format == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		printVersion(cmd.OutOrStdout(), rep, full)
		return nil
	},
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().Bool("full", false, "include commit and build date")
}

func printVersion(out io.Writer, rep versionReport, full bool) {
	fmt.Fprintf(out, "recomp %s (snapshot schema %d, %d opcodes)\n", rep.Colored(), rep.Schema, rep.Opcodes)
	if !full {
		return
	}
	for _, row := range [][2]string{
		{"commit", rep.GitCommit},
		{"message", rep.GitMessage},
		{"built", rep.BuildDate},
	} {
		v := row[1]
		if v == "" {
			v = "unknown"
		}
		fmt.Fprintf(out, "%-8s %s\n", row[0]+":", v)
	}
}
