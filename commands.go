package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wagnerlima/psytech-mcp/internal/knowledge"
	"github.com/wagnerlima/psytech-mcp/internal/report"
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func newDiagnoseCmd(opts *rootOptions) *cobra.Command {
	var (
		symptoms []string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run one diagnosis and print the result",
		Long: `Run forward chaining over the given symptom ids and print the final
facts, diagnoses with certainty factors, and the rule trace.

Examples:
  psytech-mcp diagnose --symptoms s1,s2
  psytech-mcp diagnose --symptoms s6,s7,s8 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (use text or json)", format)
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			sess, err := newSession(cfg, zap.NewNop(), false)
			if err != nil {
				return err
			}
			defer sess.Close()

			c, err := sess.Diagnose(cmd.Context(), symptoms)
			if err != nil {
				return err
			}
			if format == "json" {
				return report.JSON(cmd.OutOrStdout(), c)
			}
			return report.Text(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().StringSliceVar(&symptoms, "symptoms", nil, "comma-separated symptom ids")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Check a knowledge base document",
		Long: `Load a knowledge base document and report every problem found: missing
fields, duplicate ids and confidences outside (0,1]. Without a path the
configured (or embedded) document is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			path := cfg.Knowledge.Path
			if len(args) == 1 {
				path = args[0]
			}

			doc, err := knowledge.Source(path)
			if err != nil {
				return err
			}
			kb, err := knowledge.Load(doc, cfg.KnowledgeOptions()...)

			out := cmd.OutOrStdout()
			var malformed *knowledge.MalformedError
			if errors.As(err, &malformed) {
				fmt.Fprintln(out, failStyle.Render("INVALID")+" "+describe(path))
				for _, p := range malformed.Problems {
					fmt.Fprintln(out, "  - "+p)
				}
				return fmt.Errorf("%d problem(s) found", len(malformed.Problems))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s: %d symptoms, %d rules\n", okStyle.Render("OK"), describe(path), len(kb.Symptoms()), len(kb.Rules()))
			return nil
		},
	}
}

func newSymptomsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "symptoms",
		Short: "List the symptoms of the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			sess, err := newSession(cfg, zap.NewNop(), false)
			if err != nil {
				return err
			}
			defer sess.Close()
			return report.Symptoms(cmd.OutOrStdout(), sess.Symptoms())
		},
	}
}

func describe(path string) string {
	if strings.TrimSpace(path) == "" {
		return "embedded knowledge base"
	}
	return path
}
