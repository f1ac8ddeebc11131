package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"recomp/internal/opcode"
	"recomp/internal/script"
)

var opcodesCmd = &cobra.Command{
	Use:   "opcodes",
	Short: "List the opcode catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}
		filter, err := cmd.Flags().GetString("filter")
		if err != nil {
			return err
		}
		steps, err := cmd.Flags().GetBool("script-ops")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if steps {
			for _, name := range script.Ops() {
				if strings.Contains(name, filter) {
					fmt.Fprintln(out, name)
				}
			}
			return nil
		}
		var infos []opcode.Info
		for _, info := range opcode.All() {
			if strings.Contains(info.Name, filter) {
				infos = append(infos, info)
			}
		}
		if format, err = choice("format", format, "text", "json"); err != nil {
			return err
		}
		if format == "json" {
			return renderOpcodesJSON(out, infos)
		}
		return renderOpcodesText(out, infos)
	},
}

func init() {
	opcodesCmd.Flags().String("format", "text", "output format (text|json)")
	opcodesCmd.Flags().String("filter", "", "only names containing this substring")
	opcodesCmd.Flags().Bool("script-ops", false, "list script step ops instead of opcodes")
}

func renderOpcodesText(out io.Writer, infos []opcode.Info) error {
	name := color.New(color.Bold).SprintFunc()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUM\tNAME\tSIGNATURE\tFLAGS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", info.Num, name(info.Name), info.Signature, info.Flags)
	}
	return tw.Flush()
}

type opcodePayload struct {
	Num       uint16 `json:"num"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Flags     string `json:"flags"`
}

func renderOpcodesJSON(out io.Writer, infos []opcode.Info) error {
	payload := make([]opcodePayload, len(infos))
	for i, info := range infos {
		payload[i] = opcodePayload{
			Num:       uint16(info.Num),
			Name:      info.Name,
			Signature: info.Signature.String(),
			Flags:     info.Flags.String(),
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
