package services

import (
	"fmt"

	"proiezioni/internal/core"
)

// LoanTransaction charges the monthly payments of a loan against the daily
// balance, following its amortization schedule.
type LoanTransaction struct {
	Loan core.Loan

	payments map[string]core.Money
}

var _ core.Transaction = (*LoanTransaction)(nil)

// NewLoanTransaction precomputes the payment dates of loan.
func NewLoanTransaction(loan core.Loan) (*LoanTransaction, error) {
	schedule, err := AmortizationSchedule(loan)
	if err != nil {
		return nil, err
	}
	t := &LoanTransaction{Loan: loan, payments: make(map[string]core.Money, len(schedule))}
	for _, p := range schedule {
		t.payments[p.Date.String()] = p.Payment
	}
	return t, nil
}

// ValueOn returns the payment due on d as an outflow.
func (t *LoanTransaction) ValueOn(d core.Date) core.Money {
	return t.payments[d.String()].Neg()
}

func (t *LoanTransaction) DescriptionOn(d core.Date) string {
	if _, ok := t.payments[d.String()]; ok {
		return t.Loan.Description
	}
	return ""
}

func (t *LoanTransaction) Validate() error {
	return t.Loan.Validate()
}

// BuildProjection returns the daily projection of a scenario, loan payments
// included.
func BuildProjection(sc core.Scenario) (*core.Projection, error) {
	p := sc.Projection()
	for i, loan := range sc.Loans {
		t, err := NewLoanTransaction(loan)
		if err != nil {
			return nil, fmt.Errorf("loan %d: %w", i+1, err)
		}
		p.AddTransaction(t)
	}
	return p, nil
}
