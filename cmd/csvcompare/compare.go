package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/JonMunkholm/csvcompare/internal/config"
	"github.com/JonMunkholm/csvcompare/internal/pipeline"
	"github.com/JonMunkholm/csvcompare/internal/report"
	"github.com/JonMunkholm/csvcompare/internal/rules"
)

// Report formats.
const (
	formatHTML = "html"
	formatJSON = "json"
	formatBoth = "both"
	formatNone = "none"
)

type compareOptions struct {
	reportDir string
	format    string
}

func newCompareCmd() *cobra.Command {
	var opts compareOptions

	cmd := &cobra.Command{
		Use:   "compare <nominal> <actual> <rules.yaml>",
		Short: "Compare two folders file by file",
		Long: `Compare every file matched by the rules in the nominal folder with the file
at the same sorted position in the actual folder.

Exits with status 0 when all files match and 1 otherwise.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("report") {
				opts.reportDir = cfg.Report.Dir
			}
			if !cmd.Flags().Changed("format") {
				opts.format = cfg.Report.Format
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runCompare(ctx, cmd.OutOrStdout(), cfg, opts, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringVarP(&opts.reportDir, "report", "r", "report", "Folder to write the report to")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatBoth, "Report format: html, json, both or none")
	return cmd
}

func runCompare(ctx context.Context, out io.Writer, cfg *config.Config, opts compareOptions, nominal, actual, rulesPath string) error {
	opts.format = strings.ToLower(opts.format)
	switch opts.format {
	case formatHTML, formatJSON, formatBoth, formatNone:
	default:
		return fmt.Errorf("invalid report format %q (must be html, json, both or none)", opts.format)
	}

	rf, err := rules.Load(rulesPath)
	if err != nil {
		return err
	}

	limiter := pipeline.NewLimiter(cfg.Compare.MaxConcurrent, cfg.Compare.MaxWaitTime)
	run, err := pipeline.New(limiter, cfg.Compare.PairTimeout).Run(ctx, nominal, actual, rf)
	if err != nil {
		return err
	}

	printSummary(out, run)

	if opts.format == formatJSON || opts.format == formatBoth {
		path, err := report.WriteJSON(opts.reportDir, run)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "JSON report: %s\n", path)
	}
	if opts.format == formatHTML || opts.format == formatBoth {
		path, err := report.WriteHTML(ctx, opts.reportDir, run)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "HTML report: %s\n", path)
	}

	if !run.AllOkay {
		return errMismatch
	}
	return nil
}

func printSummary(out io.Writer, run *report.Run) {
	p := message.NewPrinter(language.English)

	for i := range run.Rules {
		rule := &run.Rules[i]
		p.Fprintf(out, "%s [%s]\n", rule.Name, rule.Kind)
		if rule.Error != "" {
			p.Fprintf(out, "  FAILED  %s\n", rule.Error)
			continue
		}
		if len(rule.Files) == 0 {
			p.Fprintf(out, "  no matching files\n")
		}
		for j := range rule.Files {
			file := &rule.Files[j]
			switch {
			case file.Error != "":
				p.Fprintf(out, "  FAILED  %s: %s\n", file.RelativePath, file.Error)
			case file.IsError && file.Hash != nil:
				p.Fprintf(out, "  FAILED  %s: %s\n", file.RelativePath, file.Hash)
			case file.IsError:
				p.Fprintf(out, "  FAILED  %s: %d differences\n", file.RelativePath, len(file.Diffs))
			default:
				p.Fprintf(out, "  OK      %s\n", file.RelativePath)
			}
		}
	}

	files, failed := run.Counts()
	var bytesRead int64
	for i := range run.Rules {
		for j := range run.Rules[i].Files {
			bytesRead += run.Rules[i].Files[j].BytesRead
		}
	}
	p.Fprintf(out, "\n%d of %d files differ, %d bytes read in %v\n", failed, files, bytesRead, run.Duration.Round(time.Millisecond))
}
