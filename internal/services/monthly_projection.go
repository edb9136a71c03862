package services

import (
	"context"
	"fmt"
	"strconv"

	"proiezioni/internal/core"
)

const (
	// DefaultProjectionMonths is used when MonthlyProjectionInput.Months is zero.
	DefaultProjectionMonths = 12
	maxProjectionMonths     = 1200
	periodDays              = 30
)

// MonthlyProjectionInput describes the simplified projection with loans.
type MonthlyProjectionInput struct {
	StartDate      core.Date
	InitialBalance core.Money
	OneTime        []core.OneTimeTransaction
	Recurring      []core.IntervalTransaction
	Loans          []core.Loan
	Months         int
}

// MonthlyProjection is the result of RunMonthlyProjection.
type MonthlyProjection struct {
	Points []core.MonthlyPoint
	// LoanLabels lists the keys of MonthlyPoint.LoanBalances in input order.
	LoanLabels []string
}

func (in MonthlyProjectionInput) Validate() error {
	if err := in.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if in.Months < 0 || in.Months > maxProjectionMonths {
		return ErrInvalidMonths
	}
	for i, t := range in.OneTime {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("one-time transaction %d: %w", i+1, err)
		}
	}
	for i, t := range in.Recurring {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("recurring transaction %d: %w", i+1, err)
		}
	}
	for i, l := range in.Loans {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("loan %d: %w", i+1, err)
		}
	}
	return nil
}

// RunMonthlyProjection steps 30 days at a time. Each period applies the
// interval transactions that fall on the period date, the one-time
// transactions dated in the same calendar month, and one payment per loan.
func RunMonthlyProjection(ctx context.Context, in MonthlyProjectionInput) (MonthlyProjection, error) {
	if err := in.Validate(); err != nil {
		return MonthlyProjection{}, err
	}
	months := in.Months
	if months == 0 {
		months = DefaultProjectionMonths
	}

	accounts := make([]*LoanAccount, len(in.Loans))
	labels := loanLabels(in.Loans)
	for i, l := range in.Loans {
		accounts[i] = NewLoanAccount(l)
	}

	result := MonthlyProjection{
		Points:     make([]core.MonthlyPoint, 0, months),
		LoanLabels: labels,
	}
	balance := in.InitialBalance
	current := in.StartDate

	for period := 0; period < months; period++ {
		if err := ctx.Err(); err != nil {
			return MonthlyProjection{}, err
		}

		for _, r := range in.Recurring {
			if r.OccursOn(current) {
				balance = balance.Add(r.Amount)
			}
		}
		for _, t := range in.OneTime {
			if t.Date.Year() == current.Year() && t.Date.Month() == current.Month() {
				balance = balance.Add(t.Amount)
			}
		}

		loanBalances := make(map[string]core.Money, len(accounts))
		for i, a := range accounts {
			if payment, ok := a.ApplyPayment(current); ok {
				balance = balance.Sub(payment.Payment)
			}
			loanBalances[labels[i]] = a.Remaining()
		}

		result.Points = append(result.Points, core.MonthlyPoint{
			Date:         current,
			Balance:      balance,
			LoanBalances: loanBalances,
		})
		current = current.AddDays(periodDays)
	}
	return result, nil
}

// loanLabels returns unique, non-empty labels for the loans.
func loanLabels(loans []core.Loan) []string {
	labels := make([]string, len(loans))
	seen := make(map[string]int, len(loans))
	for i, l := range loans {
		label := l.Description
		if label == "" {
			label = "Loan " + strconv.Itoa(i+1)
		}
		seen[label]++
		if n := seen[label]; n > 1 {
			label = label + " (" + strconv.Itoa(n) + ")"
		}
		labels[i] = label
	}
	return labels
}
