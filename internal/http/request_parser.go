// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing request bodies. Every endpoint
// accepts either a JSON document or a url-encoded form as sent by HTMX.

package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"
)

// maxBodyBytes bounds request bodies; scenarios are small documents.
const maxBodyBytes = 1 << 20

// errBadRequest marks request errors that are not domain validation failures.
var errBadRequest = errors.New("bad request")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errBadRequest, p.err)
	}
	return p
}

// IsJSON reports whether the body should be decoded as a document.
func (p *RequestBodyParser) IsJSON() bool {
	if mt, _, err := mime.ParseMediaType(p.contentType); err == nil && mt == "application/json" {
		return true
	}
	trimmed := strings.TrimSpace(string(p.body))
	return strings.HasPrefix(trimmed, "{")
}

// Decode unmarshals a JSON body into v.
func (p *RequestBodyParser) Decode(v any) error {
	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	return scenarios.Decode(p.body, v)
}

// Parse parses a form body.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}
	p.formData, p.err = url.ParseQuery(string(p.body))
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errBadRequest, p.err)
	}
	return p.err
}

// Get returns a sanitized form value.
func (p *RequestBodyParser) Get(key string) string {
	if p.formData == nil {
		return ""
	}
	return sanitizeInput(p.formData.Get(key))
}

// GetOr returns the form value or def when it is empty.
func (p *RequestBodyParser) GetOr(key, def string) string {
	if v := p.Get(key); v != "" {
		return v
	}
	return def
}

// Values returns every sanitized value submitted under key, in order.
func (p *RequestBodyParser) Values(key string) []string {
	if p.formData == nil {
		return nil
	}
	raw := p.formData[key]
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = sanitizeInput(v)
	}
	return out
}

// Int parses an optional integer field.
func (p *RequestBodyParser) Int(key string, def int) (int, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number", errBadRequest, key)
	}
	return n, nil
}

// parseFormFile builds a scenario document from the projection form. Rows
// are submitted as parallel tx_* and loan_* fields; rows with an empty
// amount are ignored so the form can carry blank lines.
func parseFormFile(p *RequestBodyParser) (scenarios.File, error) {
	if err := p.Parse(); err != nil {
		return scenarios.File{}, err
	}
	f := scenarios.File{
		Name:           p.Get("name"),
		StartDate:      scenarios.Scalar(p.Get("start_date")),
		EndDate:        scenarios.Scalar(p.Get("end_date")),
		InitialBalance: scenarios.Scalar(p.Get("initial_balance")),
	}

	amounts := p.Values("tx_amount")
	dates := p.Values("tx_date")
	ends := p.Values("tx_end_date")
	freqs := p.Values("tx_frequency")
	descs := p.Values("tx_description")
	for i, amount := range amounts {
		if amount == "" {
			continue
		}
		freq := at(freqs, i)
		if freq == "" || freq == "once" {
			f.OneTime = append(f.OneTime, scenarios.OneTimeEntry{
				Amount:      scenarios.Scalar(amount),
				Date:        scenarios.Scalar(at(dates, i)),
				Description: at(descs, i),
			})
			continue
		}
		f.Recurring = append(f.Recurring, scenarios.RecurringEntry{
			Amount:      scenarios.Scalar(amount),
			StartDate:   scenarios.Scalar(at(dates, i)),
			EndDate:     scenarios.Scalar(at(ends, i)),
			Frequency:   freq,
			Description: at(descs, i),
		})
	}

	loans, err := parseFormLoans(p)
	if err != nil {
		return scenarios.File{}, err
	}
	f.Loans = loans
	return f, nil
}

func parseFormLoans(p *RequestBodyParser) ([]scenarios.LoanEntry, error) {
	principals := p.Values("loan_principal")
	rates := p.Values("loan_rate_percent")
	payments := p.Values("loan_payment")
	starts := p.Values("loan_start_date")
	durations := p.Values("loan_duration_months")
	descs := p.Values("loan_description")

	var loans []scenarios.LoanEntry
	for i, principal := range principals {
		if principal == "" {
			continue
		}
		rate, err := parseOptionalFloat(at(rates, i))
		if err != nil {
			return nil, fmt.Errorf("loan %d: %w", i+1, err)
		}
		duration, err := parseOptionalInt(at(durations, i))
		if err != nil {
			return nil, fmt.Errorf("loan %d: %w", i+1, err)
		}
		loans = append(loans, scenarios.LoanEntry{
			Principal:      scenarios.Scalar(principal),
			RatePercent:    rate,
			Payment:        scenarios.Scalar(at(payments, i)),
			StartDate:      scenarios.Scalar(at(starts, i)),
			DurationMonths: duration,
			Description:    at(descs, i),
		})
	}
	return loans, nil
}

// parseOptionalFloat parses one value of a repeated decimal field, accepting
// a decimal comma.
func parseOptionalFloat(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errBadRequest, s)
	}
	return f, nil
}

func parseOptionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", errBadRequest, s)
	}
	return n, nil
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

// scenarioFromRequest decodes a scenario from a JSON or form body. The name
// is only required when requireName is set.
func scenarioFromRequest(w http.ResponseWriter, r *http.Request, requireName bool) (core.Scenario, error) {
	p := NewRequestBodyParser(w, r)
	var (
		f   scenarios.File
		err error
	)
	if p.IsJSON() {
		err = p.Decode(&f)
	} else {
		f, err = parseFormFile(p)
	}
	if err != nil {
		return core.Scenario{}, err
	}
	if !requireName && strings.TrimSpace(f.Name) == "" {
		f.Name = "Proiezione"
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
