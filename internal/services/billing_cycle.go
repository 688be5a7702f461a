// Package services holds the orchestration that sits between the HTTP layer
// and storage: the transaction write path with its event fan-out, and the
// generation of transactions from due subscriptions.
//
// This file implements the billing cycle as a strategy per frequency. Each
// strategy knows how to move a payment date forward by exactly one cycle.

package services

import (
	"fmt"
	"sync"
	"time"

	"saifuu/internal/core"
)

// CycleStrategy advances a payment date by one billing cycle.
type CycleStrategy interface {
	Next(current core.Date) core.Date
}

// DailyCycle bills every day.
type DailyCycle struct{}

func (DailyCycle) Next(current core.Date) core.Date {
	return core.DateOf(current.AddDate(0, 0, 1))
}

// WeeklyCycle bills every seven days.
type WeeklyCycle struct{}

func (WeeklyCycle) Next(current core.Date) core.Date {
	return core.DateOf(current.AddDate(0, 0, 7))
}

// MonthlyCycle bills on the same day of the following month. Days that do
// not exist in that month fall back to its last day.
type MonthlyCycle struct{}

func (MonthlyCycle) Next(current core.Date) core.Date {
	y, m, d := current.Date()
	return clampedDate(y, m+1, d)
}

// YearlyCycle bills on the same month and day of the following year. Feb 29
// becomes Feb 28 when the next year is not a leap year.
type YearlyCycle struct{}

func (YearlyCycle) Next(current core.Date) core.Date {
	y, m, d := current.Date()
	return clampedDate(y+1, m, d)
}

// clampedDate builds year-month-day, normalizing month overflow first and then
// capping day at the length of that month.
func clampedDate(year int, month time.Month, day int) core.Date {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return core.NewDate(first.Year(), first.Month(), day)
}

var (
	cycleMu         sync.RWMutex
	cycleStrategies = map[core.Frequency]CycleStrategy{
		core.Daily:   DailyCycle{},
		core.Weekly:  WeeklyCycle{},
		core.Monthly: MonthlyCycle{},
		core.Yearly:  YearlyCycle{},
	}
)

// GetCycleStrategy returns the strategy registered for a frequency.
func GetCycleStrategy(f core.Frequency) (CycleStrategy, error) {
	cycleMu.RLock()
	defer cycleMu.RUnlock()
	s, ok := cycleStrategies[f]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %q", f)
	}
	return s, nil
}

// RegisterCycleStrategy adds or replaces the strategy for a frequency.
func RegisterCycleStrategy(f core.Frequency, s CycleStrategy) {
	cycleMu.Lock()
	defer cycleMu.Unlock()
	cycleStrategies[f] = s
}

// CalculateNextPaymentDate returns the payment date one cycle after current.
func CalculateNextPaymentDate(current core.Date, f core.Frequency) (core.Date, error) {
	s, err := GetCycleStrategy(f)
	if err != nil {
		return core.Date{}, err
	}
	return s.Next(current), nil
}
