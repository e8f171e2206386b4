// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/fuelwatch/consensus"
	"github.com/danielhkuo/fuelwatch/ingest"
	"github.com/danielhkuo/fuelwatch/interaction"
	"github.com/danielhkuo/fuelwatch/trust"
)

// Settings gathers every tunable. It is the shape of the YAML tuning file.
type Settings struct {
	Trust       trust.Policy         `yaml:"trust"`
	Ingest      ingest.Settings      `yaml:"ingest"`
	Consensus   consensus.Settings   `yaml:"consensus"`
	Interaction interaction.Settings `yaml:"interaction"`
	Engine      Runtime              `yaml:"engine"`
}

// Runtime controls the background work
type Runtime struct {
	RecomputeDebounce time.Duration `yaml:"recompute_debounce"`
	SafetyNetInterval time.Duration `yaml:"safety_net_interval"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

func DefaultSettings() Settings {
	return Settings{
		Trust:       trust.DefaultPolicy(),
		Ingest:      ingest.DefaultSettings(),
		Consensus:   consensus.DefaultSettings(),
		Interaction: interaction.DefaultSettings(),
		Engine: Runtime{
			RecomputeDebounce: 500 * time.Millisecond,
			SafetyNetInterval: 5 * time.Minute,
			SweepInterval:     time.Minute,
		},
	}
}

// Validate rejects settings the engine cannot run with
func (s Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	t := s.Trust
	check(t.Baseline >= trust.MinScore && t.Baseline <= trust.MaxScore, "trust.baseline must be within [%v, %v]", trust.MinScore, trust.MaxScore)
	check(t.ConfirmReward >= 0 && t.DisputePenalty >= 0 && t.InteractorReward >= 0, "trust rewards and penalties must not be negative")

	in := s.Ingest
	check(in.Region.MinLat <= in.Region.MaxLat && in.Region.MinLon <= in.Region.MaxLon, "ingest.region is empty")
	check(in.MaxPhotos >= 0 && in.MaxQueueLength >= 0 && in.MaxWaitMinutes >= 0 && in.MaxAccuracyMeters >= 0, "ingest limits must not be negative")
	for typ, ttl := range in.TTL {
		check(typ.Valid(), "ingest.ttl: unknown report type %q", typ)
		check(ttl > 0, "ingest.ttl.%s must be positive", typ)
	}

	c := s.Consensus
	check(c.Lookback > 0 && c.HalfLife > 0, "consensus.lookback and half_life must be positive")
	check(c.MinReportsForHighConfidence >= 1, "consensus.min_reports_for_high_confidence must be at least 1")
	check(c.InteractionInfluence >= 0 && c.InteractionInfluence <= 1, "consensus.interaction_influence must be within [0, 1]")

	i := s.Interaction
	check(i.ConfirmThreshold > 0 && i.DisputeThreshold > 0, "interaction thresholds must be positive")
	check(i.MinWeight > 0 && i.MinWeight <= 1, "interaction.min_weight must be within (0, 1]")
	check(i.DisagreementGrace >= 0, "interaction.disagreement_grace must not be negative")

	r := s.Engine
	check(r.RecomputeDebounce >= 0, "engine.recompute_debounce must not be negative")
	check(r.SafetyNetInterval > 0 && r.SweepInterval > 0, "engine intervals must be positive")

	return errors.Join(errs...)
}
