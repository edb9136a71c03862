package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"proiezioni/internal/core"
)

const maxSchedulePayments = 1200

var monthsPerYear = decimal.NewFromInt(12)

// LoanAccount tracks the remaining principal of a loan across payments.
type LoanAccount struct {
	loan         core.Loan
	monthlyRate  decimal.Decimal
	remaining    core.Money
	paymentsMade int
}

// NewLoanAccount opens an account with the full principal outstanding.
func NewLoanAccount(loan core.Loan) *LoanAccount {
	return &LoanAccount{
		loan:        loan,
		monthlyRate: decimal.NewFromFloat(loan.AnnualRate).Div(monthsPerYear),
		remaining:   loan.Principal,
	}
}

// Loan returns the loan terms.
func (a *LoanAccount) Loan() core.Loan {
	return a.loan
}

// Remaining returns the outstanding principal.
func (a *LoanAccount) Remaining() core.Money {
	return a.remaining
}

// PaymentsMade returns how many payments have been charged.
func (a *LoanAccount) PaymentsMade() int {
	return a.paymentsMade
}

// MonthlyInterest is the interest accrued on the current remaining principal.
func (a *LoanAccount) MonthlyInterest() core.Money {
	return core.MoneyFromDecimal(a.remaining.Decimal().Mul(a.monthlyRate))
}

// ApplyPayment charges one monthly payment on date. It returns false and a
// zero payment when the loan is paid off, has not started yet, or has reached
// its duration. The full payment is charged even when it exceeds what is owed.
func (a *LoanAccount) ApplyPayment(date core.Date) (core.LoanPayment, bool) {
	if a.remaining.Cents <= 0 || date.Before(a.loan.StartDate) {
		return core.LoanPayment{Date: date, Remaining: a.remaining}, false
	}
	if a.loan.DurationMonths > 0 && a.paymentsMade >= a.loan.DurationMonths {
		return core.LoanPayment{Date: date, Remaining: a.remaining}, false
	}

	interest := a.MonthlyInterest()
	principal := a.loan.Payment.Sub(interest)
	a.remaining = a.remaining.Sub(principal)
	if a.remaining.Cents < 0 {
		a.remaining = core.Money{}
	}
	a.paymentsMade++

	return core.LoanPayment{
		Number:    a.paymentsMade,
		Date:      date,
		Payment:   a.loan.Payment,
		Interest:  interest,
		Principal: principal,
		Remaining: a.remaining,
	}, true
}

// AmortizationSchedule lists every monthly payment from the start date until
// the loan is paid off or its duration is reached.
func AmortizationSchedule(loan core.Loan) ([]core.LoanPayment, error) {
	if err := loan.Validate(); err != nil {
		return nil, err
	}
	account := NewLoanAccount(loan)
	if loan.DurationMonths == 0 && loan.Payment.Cents <= account.MonthlyInterest().Cents {
		return nil, fmt.Errorf("%w: payment %s, interest %s", ErrPaymentTooLow,
			loan.Payment, account.MonthlyInterest())
	}

	limit := maxSchedulePayments
	if loan.DurationMonths > 0 && loan.DurationMonths < limit {
		limit = loan.DurationMonths
	}
	schedule := make([]core.LoanPayment, 0, min(limit, 360))
	for i := 0; i < limit; i++ {
		payment, ok := account.ApplyPayment(loan.StartDate.AddMonths(i))
		if !ok {
			break
		}
		schedule = append(schedule, payment)
	}
	return schedule, nil
}

// ScheduleTotals sums payments and interest of a schedule.
func ScheduleTotals(schedule []core.LoanPayment) (paid, interest core.Money) {
	for _, p := range schedule {
		paid = paid.Add(p.Payment)
		interest = interest.Add(p.Interest)
	}
	return paid, interest
}
