package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"intentc/internal/compiler"
	"intentc/internal/domain"
	"intentc/internal/rules"
	"intentc/internal/schema"
)

type rootOptions struct {
	rulesPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "intentc",
		Short:         "Compile spoken requests into validated tool calls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "Rule table YAML (default: embedded table)")

	root.AddCommand(newCompileCmd(opts))
	root.AddCommand(newToolsCmd())
	root.AddCommand(newRulesCmd(opts))
	return root
}

func loadTable(path string) (*rules.Table, error) {
	if path == "" {
		return rules.Default()
	}
	return rules.Load(path)
}

func newCompileCmd(root *rootOptions) *cobra.Command {
	var (
		tools      []string
		hourFormat string
		explain    bool
		minConf    float64
	)
	cmd := &cobra.Command{
		Use:   "compile [text...]",
		Short: "Compile the arguments, or each stdin line, and print JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable(root.rulesPath)
			if err != nil {
				return err
			}
			allowed, err := domain.ParseToolNames(tools)
			if err != nil {
				return err
			}
			format, err := domain.ParseHourFormat(hourFormat)
			if err != nil {
				return err
			}
			c := compiler.New(table, schema.Default(), compiler.Options{HourFormat: format, MinConfidence: minConf})
			enc := json.NewEncoder(cmd.OutOrStdout())

			emit := func(text string) error {
				report := c.Compile(text, allowed)
				report.Record.Source = domain.SourceRules
				if explain {
					return enc.Encode(report)
				}
				return enc.Encode(report.Record)
			}

			if len(args) > 0 {
				return emit(strings.Join(args, " "))
			}
			return eachLine(cmd.InOrStdin(), emit)
		},
	}
	cmd.Flags().StringSliceVar(&tools, "tools", nil, "Restrict classification to these tools")
	cmd.Flags().StringVar(&hourFormat, "hour-format", "24h", "Alarm hour format: 24h or 12h")
	cmd.Flags().BoolVar(&explain, "explain", false, "Print the full per-segment report")
	cmd.Flags().Float64Var(&minConf, "min-confidence", 0.99, "Confidence below which the decision is fallback")
	return cmd
}

// eachLine calls fn for every non-blank line of r.
func eachLine(r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool definitions in function-calling format",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(schema.Default().Definitions(nil))
		},
	}
}

func newRulesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Show the active rule table version and triggers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := loadTable(root.rulesPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rules version %d\n\n", table.Version)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOOL\tSPECIFICITY\tKIND\tTRIGGER")
			for _, t := range table.Triggers() {
				kind := "phrase"
				if t.Pattern {
					kind = "pattern"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", t.Tool, t.Specificity, kind, t.Phrase)
			}
			return tw.Flush()
		},
	}
}
