// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package consensus

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/danielhkuo/fuelwatch/models"
)

type Settings struct {
	Lookback                    time.Duration `yaml:"lookback"`
	HalfLife                    time.Duration `yaml:"half_life"`
	MinReportsForHighConfidence int           `yaml:"min_reports_for_high_confidence"`
	InteractionInfluence        float64       `yaml:"interaction_influence"`
}

func DefaultSettings() Settings {
	return Settings{
		Lookback:                    2 * time.Hour,
		HalfLife:                    30 * time.Minute,
		MinReportsForHighConfidence: 2,
		InteractionInfluence:        0.25,
	}
}

// Dimension is the outcome of one independent vote (status, fuels or queue).
// Votes == 0 means no candidate spoke to this dimension.
type Dimension struct {
	Value      string
	Weight     float64 // winning bucket weight
	Total      float64 // weight across all buckets
	Share      float64
	Votes      int
	Confidence float64
}

type Result struct {
	Status  models.StationCurrentStatus
	Station Dimension
	Fuels   Dimension
	Queue   Dimension
}

// Aggregator computes a station's current status from its reports.
// It holds no state beyond its settings and never mutates reports.
type Aggregator struct {
	settings Settings
}

func New(settings Settings) *Aggregator {
	return &Aggregator{settings: settings}
}

func (a *Aggregator) Settings() Settings {
	return a.settings
}

// Compute returns the consensus status for the station at now
func (a *Aggregator) Compute(stationID string, reports []models.Report, now time.Time) models.StationCurrentStatus {
	return a.Evaluate(stationID, reports, now).Status
}

// Candidates filters reports down to the live ones inside the lookback
// window, sorted by (reportedAt, id). Expiry is judged by time alone.
func (a *Aggregator) Candidates(reports []models.Report, now time.Time) []models.Report {
	from := now.Add(-a.settings.Lookback)
	out := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if !r.Status.Live() || !r.ExpiresAt.After(now) {
			continue
		}
		if r.ReportedAt.Before(from) || r.ReportedAt.After(now) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReportedAt.Equal(out[j].ReportedAt) {
			return out[i].ReportedAt.Before(out[j].ReportedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Decay is the recency factor 0.5^(age/halfLife)
func (a *Aggregator) Decay(r models.Report, now time.Time) float64 {
	if a.settings.HalfLife <= 0 {
		return 1
	}
	age := now.Sub(r.ReportedAt)
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, float64(age)/float64(a.settings.HalfLife))
}

// Weight is a report's vote weight: reporter trust snapshot, recency decay,
// and net weighted confirmations already accrued.
func (a *Aggregator) Weight(r models.Report, now time.Time) float64 {
	base := math.Max(r.ReporterTrustScore, 1) / 100
	wc, wd := r.WeightedConfirmations, r.WeightedDisputes
	net := 1 + a.settings.InteractionInfluence*(wc-wd)/(1+wc+wd)
	return math.Max(0, base*a.Decay(r, now)*net)
}

type bucket struct {
	weight   float64
	votes    int
	latest   time.Time
	trustSum float64 // decay-weighted reporter trust
	decaySum float64
}

type tally struct {
	buckets map[string]*bucket
	total   float64
	votes   int
}

func newTally() *tally {
	return &tally{buckets: make(map[string]*bucket)}
}

func (t *tally) add(key string, weight, decay float64, r models.Report) {
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{}
		t.buckets[key] = b
	}
	b.weight += weight
	b.votes++
	if r.ReportedAt.After(b.latest) {
		b.latest = r.ReportedAt
	}
	b.trustSum += decay * r.ReporterTrustScore
	b.decaySum += decay
	t.total += weight
	t.votes++
}

// winner picks the heaviest bucket; ties go to the most recent report,
// then to the lexically smaller value.
func (t *tally) winner() (string, *bucket) {
	keys := make([]string, 0, len(t.buckets))
	for k := range t.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var bestKey string
	var best *bucket
	for _, k := range keys {
		b := t.buckets[k]
		if best == nil || b.weight > best.weight ||
			(b.weight == best.weight && b.latest.After(best.latest)) {
			bestKey, best = k, b
		}
	}
	return bestKey, best
}

func (a *Aggregator) dimension(t *tally) (Dimension, *bucket) {
	if t.votes == 0 {
		return Dimension{}, nil
	}
	key, b := t.winner()
	d := Dimension{Value: key, Weight: b.weight, Total: t.total, Votes: t.votes}
	if t.total > 0 {
		d.Share = b.weight / t.total
	}
	attenuation := 1.0
	if minReports := a.settings.MinReportsForHighConfidence; minReports > 0 {
		attenuation = math.Min(1, float64(t.votes)/float64(minReports))
	}
	d.Confidence = round2(clampPercent(100 * d.Share * attenuation))
	return d, b
}

// Evaluate runs the three dimension votes and assembles the station status.
// Identical input yields bit-identical output.
func (a *Aggregator) Evaluate(stationID string, reports []models.Report, now time.Time) Result {
	candidates := a.Candidates(reports, now)

	status, fuels, queue := newTally(), newTally(), newTally()
	var all bucket
	var lastUpdated time.Time
	for _, r := range candidates {
		w := a.Weight(r, now)
		decay := a.Decay(r, now)
		if r.StationStatus != "" {
			status.add(string(r.StationStatus), w, decay, r)
		}
		if r.FuelVote() {
			fuels.add(FuelKey(r.AvailableFuels), w, decay, r)
		}
		if r.QueueLength != nil {
			queue.add(string(models.QueueBucket(*r.QueueLength)), w, decay, r)
		}
		all.trustSum += decay * r.ReporterTrustScore
		all.decaySum += decay
		if r.ReportedAt.After(lastUpdated) {
			lastUpdated = r.ReportedAt
		}
	}

	res := Result{}
	var statusBucket *bucket
	res.Station, statusBucket = a.dimension(status)
	res.Fuels, _ = a.dimension(fuels)
	res.Queue, _ = a.dimension(queue)

	out := models.StationCurrentStatus{
		StationID:      stationID,
		Status:         models.StationUnknown,
		AvailableFuels: []models.FuelType{},
		LastUpdated:    lastUpdated,
		ReportCount:    len(candidates),
		ComputedAt:     now,
	}
	if res.Station.Votes > 0 {
		out.Status = models.StationStatus(res.Station.Value)
	}
	if res.Fuels.Votes > 0 {
		out.AvailableFuels = ParseFuelKey(res.Fuels.Value)
	}
	if res.Queue.Votes > 0 {
		out.QueueLength = models.QueueLength(res.Queue.Value)
	}

	switch {
	case res.Station.Votes > 0:
		out.ConfidenceScore = res.Station.Confidence
	case res.Fuels.Votes > 0:
		out.ConfidenceScore = res.Fuels.Confidence
	case res.Queue.Votes > 0:
		out.ConfidenceScore = res.Queue.Confidence
	}

	trustFrom := &all
	if statusBucket != nil {
		trustFrom = statusBucket
	}
	if trustFrom.decaySum > 0 {
		out.AverageReporterTrust = round2(trustFrom.trustSum / trustFrom.decaySum)
	}

	res.Status = out
	return res
}

// Disagrees reports whether r contradicts a winning value it voted on, and
// the highest confidence among the dimensions it contradicts.
func (res Result) Disagrees(r models.Report) (bool, float64) {
	disagree := false
	confidence := 0.0
	check := func(d Dimension, value string) {
		if d.Votes == 0 || d.Value == value {
			return
		}
		disagree = true
		confidence = math.Max(confidence, d.Confidence)
	}
	if r.StationStatus != "" {
		check(res.Station, string(r.StationStatus))
	}
	if r.FuelVote() {
		check(res.Fuels, FuelKey(r.AvailableFuels))
	}
	if r.QueueLength != nil {
		check(res.Queue, string(models.QueueBucket(*r.QueueLength)))
	}
	return disagree, confidence
}

// FuelKey is the canonical bucket key of a fuel set; the empty set is ""
func FuelKey(fuels []models.FuelType) string {
	norm := models.NormalizeFuels(fuels)
	parts := make([]string, len(norm))
	for i, f := range norm {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func ParseFuelKey(key string) []models.FuelType {
	if key == "" {
		return []models.FuelType{}
	}
	parts := strings.Split(key, ",")
	out := make([]models.FuelType, len(parts))
	for i, p := range parts {
		out[i] = models.FuelType(p)
	}
	return out
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
