package sheets

import (
	"fmt"
	"strings"
	"time"

	"proiezioni/internal/core"
	"proiezioni/internal/services"
)

// Header of the daily table; it starts on the row after the summary block.
var DailyHeader = []any{"Data", "Movimento", "Saldo", "Descrizione"}

// SummaryRows is the number of rows before the daily table header.
const SummaryRows = 4

// TabTitle names the tab holding one scenario's export.
func TabTitle(base string, scenarioID int64) string {
	return fmt.Sprintf("%s %d", strings.TrimSpace(base), scenarioID)
}

// BuildRows lays out a projection as a summary block followed by one row
// per day that moved the balance. Amounts are euros as numbers so the
// spreadsheet can chart them.
func BuildRows(proj services.ScenarioProjection, computedAt time.Time) [][]any {
	sc, sum := proj.Scenario, proj.Summary
	rows := make([][]any, 0, SummaryRows+1+len(proj.Points))
	rows = append(rows,
		[]any{"Scenario", sc.Name, "Versione", sc.Version, "Calcolato", computedAt.UTC().Format(time.RFC3339)},
		[]any{"Periodo", sum.StartDate.String(), sum.EndDate.String(), "Giorni", sum.Days},
		[]any{"Saldo iniziale", euros(sum.InitialBalance), "Saldo finale", euros(sum.FinalBalance),
			"Minimo", euros(sum.LowestBalance), sum.LowestDate.String()},
		[]any{"Entrate", euros(sum.TotalInflow), "Uscite", euros(sum.TotalOutflow),
			"Primo negativo", sum.FirstNegative.String()},
		DailyHeader,
	)
	for _, p := range proj.Points {
		if p.Delta.IsZero() {
			continue
		}
		rows = append(rows, []any{p.Date.String(), euros(p.Delta), euros(p.Balance), strings.Join(p.Descriptions, "; ")})
	}
	return rows
}

func euros(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}
