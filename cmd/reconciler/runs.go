package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/repository"
	"github.com/user/price-reconciler/internal/usecase"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect reconciliation run history",
}

var runsLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		run, err := a.query.Latest(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		if err != nil {
			return err
		}
		renderRun(os.Stdout, run)

		if withResults, _ := cmd.Flags().GetBool("results"); withResults {
			views, err := a.query.Results(ctx, run.ID)
			if err != nil {
				return err
			}
			renderResults(os.Stdout, views)
		}
		return nil
	},
}

func init() {
	runsLatestCmd.Flags().Bool("results", false, "also list the run's per-product results")
	runsCmd.AddCommand(runsLatestCmd)
}

func renderRun(w io.Writer, run *entity.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"ID", run.ID},
		{"Source", run.Source},
		{"Started", run.StartedAt.Format(time.RFC3339)},
		{"Duration", runDuration(run)},
		{"Products", run.Total},
		{"Priced", run.Priced},
		{"Opportunities", run.Opportunities},
		{"Failed", run.Failed},
		{"Report", run.ReportLink},
	})
	t.Render()
}

func runDuration(run *entity.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

func renderResults(w io.Writer, views []usecase.ResultView) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "SKU", "Base", "Scraped", "Difference", "Status", "Strategy", "Reason"})
	for i, v := range views {
		t.AppendRow(table.Row{
			i + 1,
			v.SKU,
			formatPrice(v.BasePrice),
			formatPrice(v.ScrapedPrice),
			formatPrice(v.Difference),
			statusLabel(v.ExtractionResult, v.ReconciliationOutcome),
			v.Strategy,
			v.FailureReason,
		})
	}
	t.Render()
}
