package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/ferret/internal/audit"
	"github.com/FranksOps/ferret/internal/report"
)

var reportFlags struct {
	format string
	runID  string
	status string
	since  string
	out    string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the audit trail of past enrichment runs",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.format, "format", "text", "output format: text, json or html")
	f.StringVar(&reportFlags.runID, "run-id", "", "restrict to one run")
	f.StringVar(&reportFlags.status, "status", "", "restrict to one row status")
	f.StringVar(&reportFlags.since, "since", "", "restrict to records after this RFC3339 time")
	f.StringVar(&reportFlags.out, "out", "", "write to file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sink, err := buildAudit(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()

	filter := audit.Filter{RunID: reportFlags.runID, Status: reportFlags.status}
	if reportFlags.since != "" {
		since, err := time.Parse(time.RFC3339, reportFlags.since)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		filter.Since = &since
	}

	records, err := sink.Query(ctx, filter)
	if err != nil {
		return err
	}
	summary := report.GenerateSummary(records)

	var w io.Writer = os.Stdout
	if reportFlags.out != "" {
		f, err := os.Create(reportFlags.out)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch reportFlags.format {
	case "text":
		return report.WriteText(w, summary)
	case "json":
		return report.WriteJSON(w, summary)
	case "html":
		return report.WriteHTML(w, summary)
	default:
		return fmt.Errorf("unknown report format %q", reportFlags.format)
	}
}
