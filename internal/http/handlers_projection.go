package http

import (
	"fmt"
	"net/http"
	"time"

	"proiezioni/internal/core"
	applog "proiezioni/internal/log"
	"proiezioni/internal/scenarios"
	"proiezioni/internal/services"
)

// Defaults shown by the form on first load.
const (
	defaultInitialBalance = "10000"
	defaultLoanPrincipal  = "5000"
	defaultLoanRate       = "5"
	defaultLoanPayment    = "200"
	defaultLoanDuration   = 24
	defaultLoanLabel      = "Custom Loan"
	defaultDailyRangeDays = 90
	formTransactionRows   = 4
)

type indexView struct {
	Today           string
	DailyEnd        string
	InitialBalance  string
	Principal       string
	RatePercent     string
	Payment         string
	DurationMonths  int
	Months          int
	LoanLabel       string
	Frequencies     []core.Frequency
	TransactionRows []int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	today := core.DateOf(s.now())
	data := indexView{
		Today:           today.String(),
		DailyEnd:        today.AddDays(defaultDailyRangeDays).String(),
		InitialBalance:  defaultInitialBalance,
		Principal:       defaultLoanPrincipal,
		RatePercent:     defaultLoanRate,
		Payment:         defaultLoanPayment,
		DurationMonths:  defaultLoanDuration,
		Months:          services.DefaultProjectionMonths,
		LoanLabel:       defaultLoanLabel,
		Frequencies:     core.Frequencies(),
		TransactionRows: make([]int, formTransactionRows),
	}
	s.render(w, r, NewHTMXResponse(), "index.html", data)
}

// handleProjection runs a daily projection without saving it.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	sc, err := scenarioFromRequest(w, r, false)
	if err != nil {
		s.fail(w, r, applog.OpParse, err)
		return
	}

	ctx, cancel := s.computeContext(r)
	defer cancel()
	started := time.Now()
	p, err := services.BuildProjection(sc)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}
	points, err := s.scenarios.Project(ctx, p)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}

	view := newProjectionView(sc.InitialBalance, points)
	s.events.LogProjectionRun(r.Context(), view.Summary.StartDate, view.Summary.EndDate,
		len(points), len(p.Transactions), view.Summary.FinalCents, time.Since(started).Milliseconds())
	s.respond(w, r, NewHTMXResponse(), "projection.html", view)
}

// monthlyRequest is the document accepted by /projection/monthly.
type monthlyRequest struct {
	StartDate      scenarios.Scalar          `yaml:"start_date"`
	InitialBalance scenarios.Scalar          `yaml:"initial_balance"`
	Months         int                       `yaml:"months"`
	OneTime        []scenarios.OneTimeEntry  `yaml:"one_time"`
	Interval       []scenarios.IntervalEntry `yaml:"interval"`
	Loans          []scenarios.LoanEntry     `yaml:"loans"`
}

func (m monthlyRequest) input(today core.Date) (services.MonthlyProjectionInput, error) {
	in := services.MonthlyProjectionInput{StartDate: today, Months: m.Months}
	if m.StartDate != "" {
		d, err := core.ParseDate(string(m.StartDate))
		if err != nil {
			return in, fmt.Errorf("start_date: %w", err)
		}
		in.StartDate = d
	}
	balance, err := core.ParseBalanceToCents(string(m.InitialBalance))
	if err != nil {
		return in, fmt.Errorf("initial_balance: %w", err)
	}
	in.InitialBalance = core.Money{Cents: balance}

	for i, e := range m.OneTime {
		t, err := e.Transaction()
		if err != nil {
			return in, fmt.Errorf("one_time[%d]: %w", i, err)
		}
		in.OneTime = append(in.OneTime, t)
	}
	for i, e := range m.Interval {
		t, err := e.Transaction()
		if err != nil {
			return in, fmt.Errorf("interval[%d]: %w", i, err)
		}
		in.Recurring = append(in.Recurring, t)
	}
	for i, e := range m.Loans {
		if e.StartDate == "" {
			e.StartDate = scenarios.Scalar(in.StartDate.String())
		}
		l, err := e.Loan()
		if err != nil {
			return in, fmt.Errorf("loans[%d]: %w", i, err)
		}
		in.Loans = append(in.Loans, l)
	}
	return in, nil
}

func parseMonthlyForm(p *RequestBodyParser) (monthlyRequest, error) {
	if err := p.Parse(); err != nil {
		return monthlyRequest{}, err
	}
	months, err := p.Int("months", 0)
	if err != nil {
		return monthlyRequest{}, err
	}
	m := monthlyRequest{
		StartDate:      scenarios.Scalar(p.Get("start_date")),
		InitialBalance: scenarios.Scalar(p.GetOr("initial_balance", "0")),
		Months:         months,
	}

	amounts := p.Values("tx_amount")
	dates := p.Values("tx_date")
	descs := p.Values("tx_description")
	for i, amount := range amounts {
		if amount == "" {
			continue
		}
		m.OneTime = append(m.OneTime, scenarios.OneTimeEntry{
			Amount: scenarios.Scalar(amount), Date: scenarios.Scalar(at(dates, i)), Description: at(descs, i),
		})
	}

	ivAmounts := p.Values("iv_amount")
	ivStarts := p.Values("iv_start_date")
	ivDays := p.Values("iv_interval_days")
	ivDescs := p.Values("iv_description")
	for i, amount := range ivAmounts {
		if amount == "" {
			continue
		}
		days, err := parseOptionalInt(at(ivDays, i))
		if err != nil {
			return monthlyRequest{}, fmt.Errorf("interval %d: %w", i+1, err)
		}
		m.Interval = append(m.Interval, scenarios.IntervalEntry{
			Amount:       scenarios.Scalar(amount),
			StartDate:    scenarios.Scalar(at(ivStarts, i)),
			IntervalDays: days,
			Description:  at(ivDescs, i),
		})
	}

	if m.Loans, err = parseFormLoans(p); err != nil {
		return monthlyRequest{}, err
	}
	return m, nil
}

// handleMonthlyProjection runs the 30-day-step projection with loans.
func (s *Server) handleMonthlyProjection(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	var (
		req monthlyRequest
		err error
	)
	if p.IsJSON() {
		err = p.Decode(&req)
	} else {
		req, err = parseMonthlyForm(p)
	}
	if err != nil {
		s.fail(w, r, applog.OpParse, err)
		return
	}
	in, err := req.input(core.DateOf(s.now()))
	if err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}

	ctx, cancel := s.computeContext(r)
	defer cancel()
	result, err := services.RunMonthlyProjection(ctx, in)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Monthly projection computed",
		applog.FieldStartDate, in.StartDate.String(),
		"periods", len(result.Points),
		applog.FieldLoans, len(in.Loans))
	s.respond(w, r, NewHTMXResponse(), "monthly.html", newMonthlyView(result))
}

// handleLoanSchedule returns the full amortization schedule of one loan.
func (s *Server) handleLoanSchedule(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	var entry scenarios.LoanEntry
	if p.IsJSON() {
		if err := p.Decode(&entry); err != nil {
			s.fail(w, r, applog.OpParse, err)
			return
		}
	} else {
		if err := p.Parse(); err != nil {
			s.fail(w, r, applog.OpParse, err)
			return
		}
		loans, err := parseFormLoans(p)
		if err != nil {
			s.fail(w, r, applog.OpParse, err)
			return
		}
		if len(loans) == 0 {
			s.fail(w, r, applog.OpParse, fmt.Errorf("%w: missing loan", errBadRequest))
			return
		}
		entry = loans[0]
	}
	if entry.StartDate == "" {
		entry.StartDate = scenarios.Scalar(core.DateOf(s.now()).String())
	}
	if entry.Description == "" {
		entry.Description = defaultLoanLabel
	}

	loan, err := entry.Loan()
	if err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}
	schedule, err := services.AmortizationSchedule(loan)
	if err != nil {
		s.fail(w, r, applog.OpSchedule, err)
		return
	}
	s.respond(w, r, NewHTMXResponse(), "loan_schedule.html", newScheduleView(loan, schedule))
}
