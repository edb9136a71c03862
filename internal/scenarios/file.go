package scenarios

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"proiezioni/internal/core"
)

// File is the on-disk YAML layout of a scenario.
//
//	name: Base
//	start_date: 2024-10-20
//	end_date: 2025-01-30
//	initial_balance: 100000
//	one_time:
//	  - {amount: 120000, date: 2024-11-15, description: Bonus}
//	recurring:
//	  - {amount: -240000, start_date: 2024-10-26, frequency: monthly, description: Rent}
//	loans:
//	  - {principal: 5000, rate_percent: 5, payment: 200, start_date: 2024-01-01}
type File struct {
	Name           string           `yaml:"name"`
	StartDate      Scalar           `yaml:"start_date"`
	EndDate        Scalar           `yaml:"end_date"`
	InitialBalance Scalar           `yaml:"initial_balance"`
	OneTime        []OneTimeEntry   `yaml:"one_time"`
	Recurring      []RecurringEntry `yaml:"recurring"`
	Loans          []LoanEntry      `yaml:"loans"`
}

type OneTimeEntry struct {
	Amount      Scalar `yaml:"amount"`
	Date        Scalar `yaml:"date"`
	Description string `yaml:"description"`
}

type RecurringEntry struct {
	Amount      Scalar `yaml:"amount"`
	StartDate   Scalar `yaml:"start_date"`
	EndDate     Scalar `yaml:"end_date"`
	Frequency   string `yaml:"frequency"`
	Description string `yaml:"description"`
}

// IntervalEntry repeats every IntervalDays; only the monthly projection uses it.
type IntervalEntry struct {
	Amount       Scalar `yaml:"amount"`
	StartDate    Scalar `yaml:"start_date"`
	IntervalDays int    `yaml:"interval_days"`
	Description  string `yaml:"description"`
}

type LoanEntry struct {
	Principal      Scalar  `yaml:"principal"`
	RatePercent    float64 `yaml:"rate_percent"`
	Payment        Scalar  `yaml:"payment"`
	StartDate      Scalar  `yaml:"start_date"`
	DurationMonths int     `yaml:"duration_months"`
	Description    string  `yaml:"description"`
}

// Scalar keeps the literal text of a YAML scalar, so amounts are parsed as
// decimals rather than floats and dates are not turned into timestamps.
type Scalar string

func (s *Scalar) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = Scalar(x)
	case float64:
		*s = Scalar(strconv.FormatFloat(x, 'f', -1, 64))
	case time.Time:
		*s = Scalar(x.Format("2006-01-02"))
	default:
		*s = Scalar(fmt.Sprint(x))
	}
	return nil
}

// LoadFile reads and decodes a scenario file.
func LoadFile(path string) (core.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Scenario{}, fmt.Errorf("read scenario file: %w", err)
	}
	s, err := ParseFile(data)
	if err != nil {
		return core.Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ErrMalformed is returned when a document is not valid YAML or JSON.
var ErrMalformed = errors.New("malformed scenario document")

// Decode reads a YAML document into v. JSON is accepted as well, being a
// subset of YAML.
func Decode(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// ParseFile decodes YAML into a validated scenario.
func ParseFile(data []byte) (core.Scenario, error) {
	var f File
	if err := Decode(data, &f); err != nil {
		return core.Scenario{}, err
	}
	s, err := f.Scenario()
	if err != nil {
		return core.Scenario{}, err
	}
	if err := s.Validate(); err != nil {
		return core.Scenario{}, err
	}
	return s, nil
}

// Scenario converts the file layout into the domain type.
func (f File) Scenario() (core.Scenario, error) {
	var (
		s   core.Scenario
		err error
	)
	s.Name = strings.TrimSpace(f.Name)
	if s.StartDate, err = core.ParseDate(string(f.StartDate)); err != nil {
		return s, fmt.Errorf("start_date: %w", err)
	}
	if s.EndDate, err = core.ParseDate(string(f.EndDate)); err != nil {
		return s, fmt.Errorf("end_date: %w", err)
	}
	balance, err := core.ParseBalanceToCents(string(f.InitialBalance))
	if err != nil {
		return s, fmt.Errorf("initial_balance: %w", err)
	}
	s.InitialBalance = core.Money{Cents: balance}

	for i, e := range f.OneTime {
		t, err := e.Transaction()
		if err != nil {
			return s, fmt.Errorf("one_time[%d]: %w", i, err)
		}
		s.OneTime = append(s.OneTime, t)
	}
	for i, e := range f.Recurring {
		t, err := e.Transaction()
		if err != nil {
			return s, fmt.Errorf("recurring[%d]: %w", i, err)
		}
		s.Recurring = append(s.Recurring, t)
	}
	for i, e := range f.Loans {
		l, err := e.Loan()
		if err != nil {
			return s, fmt.Errorf("loans[%d]: %w", i, err)
		}
		s.Loans = append(s.Loans, l)
	}
	return s, nil
}

func (e OneTimeEntry) Transaction() (core.OneTimeTransaction, error) {
	cents, err := core.ParseSignedDecimalToCents(string(e.Amount))
	if err != nil {
		return core.OneTimeTransaction{}, fmt.Errorf("amount: %w", err)
	}
	d, err := core.ParseDate(string(e.Date))
	if err != nil {
		return core.OneTimeTransaction{}, fmt.Errorf("date: %w", err)
	}
	return core.OneTimeTransaction{Amount: core.Money{Cents: cents}, Date: d, Description: strings.TrimSpace(e.Description)}, nil
}

func (e RecurringEntry) Transaction() (core.RecurringTransaction, error) {
	cents, err := core.ParseSignedDecimalToCents(string(e.Amount))
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("amount: %w", err)
	}
	start, err := core.ParseDate(string(e.StartDate))
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("start_date: %w", err)
	}
	var end core.Date
	if strings.TrimSpace(string(e.EndDate)) != "" {
		if end, err = core.ParseDate(string(e.EndDate)); err != nil {
			return core.RecurringTransaction{}, fmt.Errorf("end_date: %w", err)
		}
	}
	return core.RecurringTransaction{
		Amount:      core.Money{Cents: cents},
		StartDate:   start,
		EndDate:     end,
		Every:       core.Frequency(strings.ToLower(strings.TrimSpace(e.Frequency))),
		Description: strings.TrimSpace(e.Description),
	}, nil
}

func (e LoanEntry) Loan() (core.Loan, error) {
	principal, err := core.ParseDecimalToCents(string(e.Principal))
	if err != nil {
		return core.Loan{}, fmt.Errorf("principal: %w", err)
	}
	payment, err := core.ParseDecimalToCents(string(e.Payment))
	if err != nil {
		return core.Loan{}, fmt.Errorf("payment: %w", err)
	}
	start, err := core.ParseDate(string(e.StartDate))
	if err != nil {
		return core.Loan{}, fmt.Errorf("start_date: %w", err)
	}
	return core.Loan{
		Principal:      core.Money{Cents: principal},
		AnnualRate:     e.RatePercent / 100,
		Payment:        core.Money{Cents: payment},
		StartDate:      start,
		DurationMonths: e.DurationMonths,
		Description:    strings.TrimSpace(e.Description),
	}, nil
}

func (e IntervalEntry) Transaction() (core.IntervalTransaction, error) {
	cents, err := core.ParseSignedDecimalToCents(string(e.Amount))
	if err != nil {
		return core.IntervalTransaction{}, fmt.Errorf("amount: %w", err)
	}
	start, err := core.ParseDate(string(e.StartDate))
	if err != nil {
		return core.IntervalTransaction{}, fmt.Errorf("start_date: %w", err)
	}
	return core.IntervalTransaction{
		Amount:       core.Money{Cents: cents},
		StartDate:    start,
		IntervalDays: e.IntervalDays,
		Description:  strings.TrimSpace(e.Description),
	}, nil
}

// FromScenario is the inverse of File.Scenario.
func FromScenario(s core.Scenario) File {
	f := File{
		Name:           s.Name,
		StartDate:      Scalar(s.StartDate.String()),
		EndDate:        Scalar(s.EndDate.String()),
		InitialBalance: Scalar(core.FormatPlain(s.InitialBalance.Cents)),
	}
	for _, t := range s.OneTime {
		f.OneTime = append(f.OneTime, OneTimeEntry{
			Amount:      Scalar(core.FormatPlain(t.Amount.Cents)),
			Date:        Scalar(t.Date.String()),
			Description: t.Description,
		})
	}
	for _, t := range s.Recurring {
		f.Recurring = append(f.Recurring, RecurringEntry{
			Amount:      Scalar(core.FormatPlain(t.Amount.Cents)),
			StartDate:   Scalar(t.StartDate.String()),
			EndDate:     Scalar(t.EndDate.String()),
			Frequency:   string(t.Every),
			Description: t.Description,
		})
	}
	for _, l := range s.Loans {
		f.Loans = append(f.Loans, LoanEntry{
			Principal:      Scalar(core.FormatPlain(l.Principal.Cents)),
			RatePercent:    l.AnnualRate * 100,
			Payment:        Scalar(core.FormatPlain(l.Payment.Cents)),
			StartDate:      Scalar(l.StartDate.String()),
			DurationMonths: l.DurationMonths,
			Description:    l.Description,
		})
	}
	return f
}

// Marshal encodes the scenario in the file layout.
func Marshal(s core.Scenario) ([]byte, error) {
	data, err := yaml.Marshal(FromScenario(s))
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return data, nil
}
