package http

import (
	"time"

	"proiezioni/internal/core"
	"proiezioni/internal/services"
)

// View types are shared by the JSON responses and the HTML templates.
type (
	pointView struct {
		Date         string   `json:"date"`
		BalanceCents int64    `json:"balance_cents"`
		Balance      string   `json:"balance"`
		DeltaCents   int64    `json:"delta_cents"`
		Delta        string   `json:"delta"`
		Descriptions []string `json:"descriptions,omitempty"`
		Negative     bool     `json:"-"`
	}

	summaryView struct {
		StartDate     string `json:"start_date"`
		EndDate       string `json:"end_date"`
		Days          int    `json:"days"`
		Initial       string `json:"initial_balance"`
		Final         string `json:"final_balance"`
		FinalCents    int64  `json:"final_balance_cents"`
		Lowest        string `json:"lowest_balance"`
		LowestDate    string `json:"lowest_date"`
		Inflow        string `json:"total_inflow"`
		Outflow       string `json:"total_outflow"`
		FirstNegative string `json:"first_negative,omitempty"`
	}

	projectionView struct {
		// Scenario is set when a stored scenario was projected.
		Scenario *scenarioView `json:"scenario,omitempty"`
		Summary  summaryView   `json:"summary"`
		Points   []pointView   `json:"points"`
	}

	loanPaymentView struct {
		Number    int    `json:"number"`
		Date      string `json:"date"`
		Payment   string `json:"payment"`
		Interest  string `json:"interest"`
		Principal string `json:"principal"`
		Remaining string `json:"remaining"`
	}

	scheduleView struct {
		Description   string            `json:"description"`
		Payments      []loanPaymentView `json:"payments"`
		TotalPaid     string            `json:"total_paid"`
		TotalInterest string            `json:"total_interest"`
	}

	monthlyRowView struct {
		Date    string   `json:"date"`
		Balance string   `json:"balance"`
		Loans   []string `json:"loans"`
	}

	monthlyView struct {
		LoanLabels []string         `json:"loan_labels"`
		Rows       []monthlyRowView `json:"rows"`
	}

	snapshotView struct {
		Version    int64       `json:"version"`
		ComputedAt time.Time   `json:"computed_at"`
		Summary    summaryView `json:"summary"`
	}

	scenarioView struct {
		ID             int64         `json:"id"`
		Name           string        `json:"name"`
		Version        int64         `json:"version"`
		StartDate      string        `json:"start_date"`
		EndDate        string        `json:"end_date"`
		InitialBalance string        `json:"initial_balance"`
		OneTime        int           `json:"one_time_count"`
		Recurring      int           `json:"recurring_count"`
		Loans          int           `json:"loan_count"`
		UpdatedAt      time.Time     `json:"updated_at"`
		Snapshot       *snapshotView `json:"snapshot,omitempty"`
	}
)

func newPointViews(points []core.ProjectionPoint) []pointView {
	out := make([]pointView, len(points))
	for i, p := range points {
		out[i] = pointView{
			Date:         p.Date.String(),
			BalanceCents: p.Balance.Cents,
			Balance:      p.Balance.String(),
			DeltaCents:   p.Delta.Cents,
			Delta:        p.Delta.String(),
			Descriptions: p.Descriptions,
			Negative:     p.Balance.IsNegative(),
		}
	}
	return out
}

func newSummaryView(s core.ProjectionSummary) summaryView {
	return summaryView{
		StartDate:     s.StartDate.String(),
		EndDate:       s.EndDate.String(),
		Days:          s.Days,
		Initial:       s.InitialBalance.String(),
		Final:         s.FinalBalance.String(),
		FinalCents:    s.FinalBalance.Cents,
		Lowest:        s.LowestBalance.String(),
		LowestDate:    s.LowestDate.String(),
		Inflow:        s.TotalInflow.String(),
		Outflow:       s.TotalOutflow.String(),
		FirstNegative: s.FirstNegative.String(),
	}
}

func newProjectionView(initial core.Money, points []core.ProjectionPoint) projectionView {
	return projectionView{
		Summary: newSummaryView(services.Summarize(initial, points)),
		Points:  newPointViews(points),
	}
}

func newScheduleView(loan core.Loan, schedule []core.LoanPayment) scheduleView {
	paid, interest := services.ScheduleTotals(schedule)
	v := scheduleView{
		Description:   loan.Description,
		Payments:      make([]loanPaymentView, len(schedule)),
		TotalPaid:     paid.String(),
		TotalInterest: interest.String(),
	}
	for i, p := range schedule {
		v.Payments[i] = loanPaymentView{
			Number:    p.Number,
			Date:      p.Date.String(),
			Payment:   p.Payment.String(),
			Interest:  p.Interest.String(),
			Principal: p.Principal.String(),
			Remaining: p.Remaining.String(),
		}
	}
	return v
}

func newMonthlyView(m services.MonthlyProjection) monthlyView {
	v := monthlyView{LoanLabels: m.LoanLabels, Rows: make([]monthlyRowView, len(m.Points))}
	for i, p := range m.Points {
		row := monthlyRowView{Date: p.Date.String(), Balance: p.Balance.String(), Loans: make([]string, len(m.LoanLabels))}
		for j, label := range m.LoanLabels {
			row.Loans[j] = p.LoanBalances[label].String()
		}
		v.Rows[i] = row
	}
	return v
}

func newScenarioView(s core.Scenario) scenarioView {
	return scenarioView{
		ID:             s.ID,
		Name:           s.Name,
		Version:        s.Version,
		StartDate:      s.StartDate.String(),
		EndDate:        s.EndDate.String(),
		InitialBalance: s.InitialBalance.String(),
		OneTime:        len(s.OneTime),
		Recurring:      len(s.Recurring),
		Loans:          len(s.Loans),
		UpdatedAt:      s.UpdatedAt,
	}
}

func newSnapshotView(s core.Snapshot) *snapshotView {
	return &snapshotView{Version: s.Version, ComputedAt: s.ComputedAt, Summary: newSummaryView(s.Summary)}
}
