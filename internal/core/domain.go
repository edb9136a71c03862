package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const maxDescriptionLength = 200

type (
	Frequency string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is anything that can move the balance on a given day.
	Transaction interface {
		// ValueOn returns the signed amount applied on d, or zero.
		ValueOn(d Date) Money
		// DescriptionOn returns the description when the transaction applies on d.
		DescriptionOn(d Date) string
		Validate() error
	}

	OneTimeTransaction struct {
		Amount      Money
		Date        Date
		Description string
	}

	RecurringTransaction struct {
		Amount      Money
		StartDate   Date
		EndDate     Date // optional, zero means open ended
		Every       Frequency
		Description string
	}

	// IntervalTransaction repeats every N days from its start date. It is only
	// used by the monthly projection path.
	IntervalTransaction struct {
		Amount       Money
		StartDate    Date
		IntervalDays int
		Description  string
	}

	Loan struct {
		Principal      Money
		AnnualRate     float64 // 0.05 means 5% per year
		Payment        Money
		StartDate      Date
		DurationMonths int // 0 means until paid off
		Description    string
	}

	Projection struct {
		StartDate      Date
		EndDate        Date
		InitialBalance Money
		Transactions   []Transaction
	}
)

var (
	ErrInvalidDay           = errors.New("invalid day")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidRange         = errors.New("end date before start date")
	ErrEmptyDescription     = errors.New("empty description")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrUnsupportedFrequency = errors.New("unsupported frequency")
	ErrInvalidInterval      = errors.New("interval must be at least 1 day")
	ErrInvalidRate          = errors.New("invalid interest rate")
	ErrInvalidDuration      = errors.New("invalid loan duration")
)

var validationErrors = []error{
	ErrInvalidDay, ErrInvalidMonth, ErrInvalidAmount, ErrInvalidDate,
	ErrInvalidRange, ErrEmptyDescription, ErrDescriptionTooLong,
	ErrUnsupportedFrequency, ErrInvalidInterval, ErrInvalidRate, ErrInvalidDuration,
}

// IsValidationError reports whether err wraps one of the input validation errors.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// AddMonths moves n months forward, clamping to the last day of the target
// month (Jan 31 + 1 month is Feb 28/29).
func (d Date) AddMonths(n int) Date {
	first := time.Date(d.Year(), time.Month(d.Month())+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

const secondsPerDay = 24 * 60 * 60

// DaysSince returns the calendar days between other and d; negative when d is
// earlier. Both dates are UTC midnights, so the Unix difference is exact at
// any distance, unlike a time.Duration.
func (d Date) DaysSince(other Date) int {
	return int((d.Unix() - other.Unix()) / secondsPerDay)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Equal reports whether d and other are the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (f Frequency) Validate() error {
	if _, err := GetOccurrenceChecker(f); err != nil {
		return err
	}
	return nil
}

// Validate rejects zero amounts. Negative amounts are outflows.
func (m Money) Validate() error {
	if m.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidatePositive rejects amounts that are not strictly positive.
func (m Money) ValidatePositive() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateDescription(s string) error {
	if len(s) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (t OneTimeTransaction) ValueOn(d Date) Money {
	if t.Date.Equal(d) {
		return t.Amount
	}
	return Money{}
}

func (t OneTimeTransaction) DescriptionOn(d Date) string {
	if t.Date.Equal(d) {
		return t.Description
	}
	return ""
}

func (t OneTimeTransaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	return validateDescription(t.Description)
}

// OccursOn reports whether the recurrence fires on d.
func (t RecurringTransaction) OccursOn(d Date) bool {
	if d.Before(t.StartDate) {
		return false
	}
	if !t.EndDate.IsEmpty() && d.After(t.EndDate) {
		return false
	}
	checker, err := GetOccurrenceChecker(t.Every)
	if err != nil {
		return false
	}
	return checker.OccursOn(t.StartDate, d)
}

func (t RecurringTransaction) ValueOn(d Date) Money {
	if t.OccursOn(d) {
		return t.Amount
	}
	return Money{}
}

func (t RecurringTransaction) DescriptionOn(d Date) string {
	if t.OccursOn(d) {
		return t.Description
	}
	return ""
}

func (t RecurringTransaction) Validate() error {
	if err := t.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !t.EndDate.IsEmpty() {
		if err := t.EndDate.Validate(); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		if t.EndDate.Before(t.StartDate) {
			return ErrInvalidRange
		}
	}
	if err := t.Every.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	return validateDescription(t.Description)
}

// OccursOn reports whether d is a non-negative multiple of the interval from start.
func (t IntervalTransaction) OccursOn(d Date) bool {
	if t.IntervalDays < 1 {
		return false
	}
	days := d.DaysSince(t.StartDate)
	return days >= 0 && days%t.IntervalDays == 0
}

func (t IntervalTransaction) Validate() error {
	if err := t.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if t.IntervalDays < 1 {
		return ErrInvalidInterval
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	return validateDescription(t.Description)
}

func (l Loan) Validate() error {
	if err := l.Principal.ValidatePositive(); err != nil {
		return fmt.Errorf("principal: %w", err)
	}
	if err := l.Payment.ValidatePositive(); err != nil {
		return fmt.Errorf("payment: %w", err)
	}
	if l.AnnualRate < 0 || l.AnnualRate > 10 {
		return ErrInvalidRate
	}
	if l.DurationMonths < 0 || l.DurationMonths > 1200 {
		return ErrInvalidDuration
	}
	if err := l.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	return validateDescription(l.Description)
}

// NewProjection creates an empty projection over [start, end].
func NewProjection(start, end Date, initial Money) *Projection {
	return &Projection{StartDate: start, EndDate: end, InitialBalance: initial}
}

// AddTransaction appends a one-time or recurring transaction.
func (p *Projection) AddTransaction(t Transaction) {
	p.Transactions = append(p.Transactions, t)
}

// Days returns the number of days covered, both ends included.
func (p Projection) Days() int {
	return p.EndDate.DaysSince(p.StartDate) + 1
}

func (p Projection) Validate() error {
	if err := p.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if err := p.EndDate.Validate(); err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if p.EndDate.Before(p.StartDate) {
		return ErrInvalidRange
	}
	for i, t := range p.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i+1, err)
		}
	}
	return nil
}
