// Package services provides business logic and orchestration services.
//
// This file implements the daily balance projection: starting from the
// initial balance, every day in the range adds the sum of the transactions
// that apply on that day.
package services

import (
	"context"
	"fmt"

	"proiezioni/internal/core"
)

// DefaultMaxProjectionDays bounds a single run (about 50 years).
const DefaultMaxProjectionDays = 366 * 50

// ProjectionEngine runs daily projections.
type ProjectionEngine struct {
	maxDays int
}

// NewProjectionEngine creates an engine that rejects ranges longer than maxDays.
// A non-positive maxDays uses DefaultMaxProjectionDays.
func NewProjectionEngine(maxDays int) *ProjectionEngine {
	if maxDays <= 0 {
		maxDays = DefaultMaxProjectionDays
	}
	return &ProjectionEngine{maxDays: maxDays}
}

// Run projects p day by day, start and end included.
func (e *ProjectionEngine) Run(ctx context.Context, p *core.Projection) ([]core.ProjectionPoint, error) {
	if p == nil {
		return nil, fmt.Errorf("nil projection")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	days := p.Days()
	if days > e.maxDays {
		return nil, fmt.Errorf("%w: %d days requested, max %d", ErrRangeTooLong, days, e.maxDays)
	}

	points := make([]core.ProjectionPoint, 0, days)
	balance := p.InitialBalance
	for current := p.StartDate; !current.After(p.EndDate); current = current.AddDays(1) {
		// Cancellation is checked once a month of projected days.
		if current.Day() == 1 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		var delta, inflow, outflow core.Money
		var descriptions []string
		for _, t := range p.Transactions {
			v := t.ValueOn(current)
			if v.IsZero() {
				continue
			}
			delta = delta.Add(v)
			if v.IsNegative() {
				outflow = outflow.Add(v)
			} else {
				inflow = inflow.Add(v)
			}
			if desc := t.DescriptionOn(current); desc != "" {
				descriptions = append(descriptions, desc)
			}
		}
		balance = balance.Add(delta)

		points = append(points, core.ProjectionPoint{
			Date:         current,
			Balance:      balance,
			Delta:        delta,
			Inflow:       inflow,
			Outflow:      outflow,
			Descriptions: descriptions,
		})
	}
	return points, nil
}

// Summarize condenses projection points. It returns a zero summary for no points.
func Summarize(initial core.Money, points []core.ProjectionPoint) core.ProjectionSummary {
	if len(points) == 0 {
		return core.ProjectionSummary{InitialBalance: initial, FinalBalance: initial, LowestBalance: initial}
	}
	s := core.ProjectionSummary{
		StartDate:      points[0].Date,
		EndDate:        points[len(points)-1].Date,
		Days:           len(points),
		InitialBalance: initial,
		FinalBalance:   points[len(points)-1].Balance,
		LowestBalance:  points[0].Balance,
		LowestDate:     points[0].Date,
	}
	for _, pt := range points {
		if pt.Balance.Cents < s.LowestBalance.Cents {
			s.LowestBalance = pt.Balance
			s.LowestDate = pt.Date
		}
		s.TotalInflow = s.TotalInflow.Add(pt.Inflow)
		s.TotalOutflow = s.TotalOutflow.Add(pt.Outflow)
		if s.FirstNegative.IsEmpty() && pt.Balance.IsNegative() {
			s.FirstNegative = pt.Date
		}
	}
	return s
}
