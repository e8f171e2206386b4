// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package trust

import "math"

const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Policy holds the adjustment magnitudes. Keep them small relative to the
// score range so the trust/consensus feedback loop converges.
type Policy struct {
	Baseline         float64 `yaml:"baseline"`
	ConfirmReward    float64 `yaml:"confirm_reward"`
	DisputePenalty   float64 `yaml:"dispute_penalty"`
	InteractorReward float64 `yaml:"interactor_reward"`
}

func DefaultPolicy() Policy {
	return Policy{
		Baseline:         50,
		ConfirmReward:    2.0,
		DisputePenalty:   3.0,
		InteractorReward: 0.5,
	}
}

// ReportConfirmed is the reporter's reward; scale is the report confidence in [0,1]
func (p Policy) ReportConfirmed(scale float64) float64 {
	return round2(p.ConfirmReward * unit(scale))
}

// ReportDisputed is the reporter's penalty; scale is the disagreement share in [0,1]
func (p Policy) ReportDisputed(scale float64) float64 {
	return -round2(p.DisputePenalty * unit(scale))
}

func (p Policy) InteractionMatched() float64 {
	return p.InteractorReward
}

// Clamp bounds a score to [0,100] at two decimal places
func Clamp(score float64) float64 {
	if math.IsNaN(score) {
		return MinScore
	}
	return round2(math.Max(MinScore, math.Min(MaxScore, score)))
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
