// Package report renders forecasts as aligned console tables.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sartorproj/revforecast/forecast"
)

// Printer formats numbers with grouping separators for a language.
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a printer for tag. Use language.English for "1,234.56".
func NewPrinter(tag language.Tag) *Printer {
	return &Printer{p: message.NewPrinter(tag)}
}

// Amount formats v with two decimals and grouping.
func (pr *Printer) Amount(v float64) string {
	return pr.p.Sprintf("%.2f", v)
}

// Forecasts writes one row per forecast point, grouped by entity.
func (pr *Printer) Forecasts(w io.Writer, results []*forecast.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ENTITY\tMODEL\tORDER\tLB P\tYEAR\tFORECAST\t")

	degraded := 0
	for _, r := range results {
		order := "-"
		if r.Order != nil {
			order = r.Order.String()
		}
		lb := ljungBoxP(r)
		for i, pt := range r.Points {
			entity, model, ord, p := r.EntityID, string(r.ModelUsed), order, lb
			if i > 0 {
				entity, model, ord, p = "", "", "", ""
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t\n", entity, model, ord, p, pt.Period, pr.Amount(pt.Value))
		}
		if r.Degraded() {
			degraded++
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}

	for _, r := range results {
		if r.Degraded() {
			if _, err := fmt.Fprintf(w, "note: %s: %s\n", r.EntityID, r.Note); err != nil {
				return err
			}
		}
	}
	_, err := pr.p.Fprintf(w, "%d entities forecast, %d degraded\n", len(results), degraded)
	return err
}

// ljungBoxP formats the residual Ljung-Box p-value, or "-" when the model
// has none.
func ljungBoxP(r *forecast.Result) string {
	if r.Diagnostics == nil || r.Diagnostics.LjungBox == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", r.Diagnostics.LjungBox.PValue)
}

// Accuracy writes a backtest accuracy table.
func (pr *Printer) Accuracy(w io.Writer, entities []string, accuracy []*forecast.Accuracy) error {
	if len(entities) != len(accuracy) {
		return fmt.Errorf("got %d entities for %d accuracy rows", len(entities), len(accuracy))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ENTITY\tMODEL\tHOLDOUT\tRMSE\tMAE\tMAPE %\t")
	for i, a := range accuracy {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t\n",
			entities[i], a.ModelUsed, a.Holdout, pr.Amount(a.RMSE), pr.Amount(a.MAE), pr.Amount(a.MAPE))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return nil
}
