package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RSIResult is the latest indicator value for one (instrument, timeframe) pair.
// An unavailable result has Value.Valid == false and a zero AsOf.
type RSIResult struct {
	Value decimal.NullDecimal
	AsOf  time.Time
	Live  bool // AsOf is wall clock because a live quote closed the series
}

// Unavailable is the "-" result.
func Unavailable() RSIResult { return RSIResult{} }

// Available reports whether the result carries a value.
func (r RSIResult) Available() bool { return r.Value.Valid }

// Snapshot maps instrument name -> timeframe name -> result.
// A published Snapshot is never mutated; each refresh cycle builds a new one.
type Snapshot struct {
	Values    map[string]map[string]RSIResult
	UpdatedAt time.Time
	Cycle     uint64
}

// NewSnapshot builds a snapshot with every pair set to unavailable.
func NewSnapshot(instruments []Instrument, timeframes []string) *Snapshot {
	s := &Snapshot{Values: make(map[string]map[string]RSIResult, len(instruments))}
	for _, in := range instruments {
		row := make(map[string]RSIResult, len(timeframes))
		for _, tf := range timeframes {
			row[tf] = Unavailable()
		}
		s.Values[in.Name] = row
	}
	return s
}

// Get returns the result for a pair; missing pairs read as unavailable.
func (s *Snapshot) Get(instrument, timeframe string) RSIResult {
	if s == nil {
		return Unavailable()
	}
	row, ok := s.Values[instrument]
	if !ok {
		return Unavailable()
	}
	return row[timeframe]
}
