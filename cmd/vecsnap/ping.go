package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	healthuc "github.com/kailas-cloud/vecsnap/internal/usecase/health"
)

func NewPingCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the store, embedding backend and index",
		Args:  cobra.NoArgs,
		RunE:  makePingRunner(load),
	}
}

func makePingRunner(load loader) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := load(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		// a failed load shows up as an embedding check error
		_ = a.initEmbedding(cmd.Context())

		report := a.pipeline.Health.Check(cmd.Context())
		if wantJSON(cmd) {
			if err := writeJSON(cmd, reportJSON{
				Status: string(report.Status),
				Checks: report.Checks,
				Index:  report.Index,
			}); err != nil {
				return err
			}
		} else {
			printReport(cmd, report)
		}

		if report.Status != healthuc.Healthy {
			return fmt.Errorf("status %s", report.Status)
		}
		return nil
	}
}

type reportJSON struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
	Index  *domain.IndexHealth             `json:"index,omitempty"`
}

func printReport(cmd *cobra.Command, r healthuc.Report) {
	names := make([]string, 0, len(r.Checks))
	for name := range r.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status: %s\n", r.Status)
	for _, name := range names {
		fmt.Fprintf(out, "  %-10s %s\n", name, r.Checks[name])
	}
	if r.Index != nil {
		fmt.Fprintf(out, "index: %d vectors, %d dims\n", r.Index.Count, r.Index.Dim)
	}
}
