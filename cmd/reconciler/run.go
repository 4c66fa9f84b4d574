package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/reconcile"
	"github.com/user/price-reconciler/internal/usecase"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation pass and publish the report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		rep, err := a.reconciler.Execute(cmd.Context())
		if err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")
		renderRunReport(os.Stdout, rep, all)
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("all", false, "list every product instead of only opportunities")
}

func renderRunReport(w io.Writer, rep *usecase.RunReport, all bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"SKU", "Product", "Base", rep.Run.Source, "Difference", "Status"})

	shown := 0
	for _, r := range rep.Results {
		out := reconcile.Classify(r)
		if !all && !out.IsOpportunity {
			continue
		}
		shown++
		t.AppendRow(table.Row{r.SKU, r.ProductName, formatPrice(r.BasePrice), formatPrice(r.ScrapedPrice), formatPrice(out.Difference), statusLabel(r, out)})
	}
	t.AppendFooter(table.Row{"Total", rep.Summary.Total, "Priced", rep.Summary.Priced, "Opportunities", rep.Summary.Opportunities})

	if shown == 0 && !all {
		fmt.Fprintln(w, "No pricing opportunities found.")
	}
	t.Render()
	if rep.Run.ReportLink != "" {
		fmt.Fprintf(w, "Report: %s\n", rep.Run.ReportLink)
	}
}

func formatPrice(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

func statusLabel(r entity.ExtractionResult, out entity.ReconciliationOutcome) string {
	if out.IsOpportunity {
		return "opportunity"
	}
	return string(r.Status)
}
