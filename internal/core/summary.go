package core

import "time"

// ProjectionPoint is the balance at the end of one projected day.
type ProjectionPoint struct {
	Date         Date
	Balance      Money
	Delta        Money    // sum of the day's transactions
	Inflow       Money    // sum of the day's positive transactions
	Outflow      Money    // sum of the day's negative transactions
	Descriptions []string // non-empty descriptions of the day's transactions
}

// ProjectionSummary condenses a projection run.
type ProjectionSummary struct {
	StartDate      Date
	EndDate        Date
	Days           int
	InitialBalance Money
	FinalBalance   Money
	LowestBalance  Money
	LowestDate     Date
	TotalInflow    Money // sum of positive transactions
	TotalOutflow   Money // sum of negative transactions
	FirstNegative  Date  // zero when the balance never goes below zero
}

// LoanPayment is one amortization step.
type LoanPayment struct {
	Number    int
	Date      Date
	Payment   Money
	Interest  Money
	Principal Money
	Remaining Money
}

// MonthlyPoint is one 30-day period of the simplified projection.
type MonthlyPoint struct {
	Date         Date
	Balance      Money
	LoanBalances map[string]Money // remaining principal by loan description
}

// Scenario is a named, persisted set of projection and loan inputs.
type Scenario struct {
	ID             int64
	Name           string
	StartDate      Date
	EndDate        Date
	InitialBalance Money
	OneTime        []OneTimeTransaction
	Recurring      []RecurringTransaction
	Loans          []Loan
	Version        int64 // incremented on every save
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Snapshot is a precomputed projection summary stored for a scenario.
type Snapshot struct {
	ScenarioID int64
	Version    int64
	Summary    ProjectionSummary
	ComputedAt time.Time
}

// Projection builds the daily projection of the scenario transactions. Loan
// payments are added by services.BuildProjection.
func (s Scenario) Projection() *Projection {
	p := NewProjection(s.StartDate, s.EndDate, s.InitialBalance)
	for _, t := range s.OneTime {
		p.AddTransaction(t)
	}
	for _, t := range s.Recurring {
		p.AddTransaction(t)
	}
	return p
}

func (s Scenario) Validate() error {
	if len(s.Name) == 0 {
		return ErrEmptyDescription
	}
	if len(s.Name) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := s.Projection().Validate(); err != nil {
		return err
	}
	for _, l := range s.Loans {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	return nil
}
