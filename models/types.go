// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"slices"
	"time"
)

// ReportType is the kind of observation a report carries
type ReportType string

const (
	ReportStatusUpdate     ReportType = "STATUS_UPDATE"
	ReportFuelAvailability ReportType = "FUEL_AVAILABILITY"
	ReportQueueLength      ReportType = "QUEUE_LENGTH"
	ReportPriceUpdate      ReportType = "PRICE_UPDATE"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportStatusUpdate, ReportFuelAvailability, ReportQueueLength, ReportPriceUpdate:
		return true
	}
	return false
}

// ReportStatus is the lifecycle state of a report.
// PENDING is the only state that can still be resolved by interactions.
type ReportStatus string

const (
	ReportPending   ReportStatus = "PENDING"
	ReportConfirmed ReportStatus = "CONFIRMED"
	ReportDisputed  ReportStatus = "DISPUTED"
	ReportExpired   ReportStatus = "EXPIRED"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportConfirmed, ReportDisputed, ReportExpired:
		return true
	}
	return false
}

// Live reports take part in consensus
func (s ReportStatus) Live() bool {
	return s == ReportPending || s == ReportConfirmed
}

type InteractionType string

const (
	InteractionConfirm InteractionType = "CONFIRM"
	InteractionDispute InteractionType = "DISPUTE"
	InteractionFlag    InteractionType = "FLAG"
)

func (t InteractionType) Valid() bool {
	switch t {
	case InteractionConfirm, InteractionDispute, InteractionFlag:
		return true
	}
	return false
}

type StationStatus string

const (
	StationOpen      StationStatus = "OPEN"
	StationClosed    StationStatus = "CLOSED"
	StationRefilling StationStatus = "REFILLING" // fuel truck is unloading
	StationQueue     StationStatus = "QUEUE"     // open with a queue
	StationNoFuel    StationStatus = "NO_FUEL"   // open without fuel
	StationUnknown   StationStatus = "UNKNOWN"
)

func (s StationStatus) Valid() bool {
	switch s {
	case StationOpen, StationClosed, StationRefilling, StationQueue, StationNoFuel, StationUnknown:
		return true
	}
	return false
}

type FuelType string

const (
	FuelGasoline FuelType = "GASOLINE"
	FuelGasoil   FuelType = "GASOIL"
	FuelGas      FuelType = "GAS"
)

func (f FuelType) Valid() bool {
	switch f {
	case FuelGasoline, FuelGasoil, FuelGas:
		return true
	}
	return false
}

// NormalizeFuels returns the fuels sorted and de-duplicated
func NormalizeFuels(fuels []FuelType) []FuelType {
	out := make([]FuelType, 0, len(fuels))
	for _, f := range fuels {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}

type QueueLength string

const (
	QueueNone     QueueLength = "NONE"
	QueueShort    QueueLength = "SHORT"     // < 10 cars
	QueueMedium   QueueLength = "MEDIUM"    // 10-29 cars
	QueueLong     QueueLength = "LONG"      // 30-99 cars
	QueueVeryLong QueueLength = "VERY_LONG" // 100+ cars
)

// QueueBucket maps a vehicle count to its queue bucket
func QueueBucket(vehicles int) QueueLength {
	switch {
	case vehicles <= 0:
		return QueueNone
	case vehicles < 10:
		return QueueShort
	case vehicles < 30:
		return QueueMedium
	case vehicles < 100:
		return QueueLong
	default:
		return QueueVeryLong
	}
}

// Request types

type CreateReportRequest struct {
	StationID            string        `json:"station_id"`
	ReportType           ReportType    `json:"report_type"`
	StationStatus        StationStatus `json:"station_status,omitempty"`
	AvailableFuels       []FuelType    `json:"available_fuels,omitempty"`
	QueueLength          *int          `json:"queue_length,omitempty"`
	EstimatedWaitMinutes *int          `json:"estimated_wait_minutes,omitempty"`
	Latitude             float64       `json:"latitude"`
	Longitude            float64       `json:"longitude"`
	Accuracy             *float64      `json:"accuracy,omitempty"` // GPS accuracy in meters
	PhotoURLs            []string      `json:"photo_urls,omitempty"`
}

type InteractRequest struct {
	InteractionType InteractionType `json:"interaction_type"`
}

// ReportQuery filters report listings. Zero values mean "any".
type ReportQuery struct {
	StationID  string
	ReporterID string
	Status     ReportStatus
	ReportType ReportType
	Limit      int
	Offset     int
}

// Response types

type CreateReportResponse struct {
	Report  Report `json:"report"`
	Message string `json:"message"`
}

type InteractResult struct {
	Report      Report            `json:"report"`
	Interaction ReportInteraction `json:"interaction"`
	Message     string            `json:"message"`
}

type ReportList struct {
	Reports []Report `json:"reports"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

type TrustScoreResponse struct {
	UserID     string  `json:"user_id"`
	TrustScore float64 `json:"trust_score"`
}

// Domain types

type Report struct {
	ID         string       `json:"id"`
	StationID  string       `json:"station_id"`
	ReporterID string       `json:"reporter_id"`
	ReportType ReportType   `json:"report_type"`
	Status     ReportStatus `json:"status"`

	// Reported value
	StationStatus        StationStatus `json:"station_status,omitempty"`
	AvailableFuels       []FuelType    `json:"available_fuels,omitempty"`
	QueueLength          *int          `json:"queue_length,omitempty"`
	EstimatedWaitMinutes *int          `json:"estimated_wait_minutes,omitempty"`

	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	PhotoURLs []string `json:"photo_urls,omitempty"`

	ReportedAt time.Time `json:"reported_at"`
	ExpiresAt  time.Time `json:"expires_at"`

	// Trust & consensus
	Confirmations         int     `json:"confirmations"`
	Disputes              int     `json:"disputes"`
	WeightedConfirmations float64 `json:"weighted_confirmations"`
	WeightedDisputes      float64 `json:"weighted_disputes"`
	ConfidenceScore       float64 `json:"confidence_score"`
	ReporterTrustScore    float64 `json:"reporter_trust_score"` // snapshot taken at submission, never updated

	// Set once when the report first leaves PENDING through an interaction or
	// the disagreement pass. ResolutionScale is the confidence (confirmed) or
	// disagreement share (disputed) at that moment.
	ResolvedStatus  ReportStatus `json:"resolved_status,omitempty"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	ResolutionScale float64      `json:"-"`
	SettledAt       *time.Time   `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"-"`
}

// Expired reports whether the report is past its expiry at now,
// independent of whether the sweeper has marked it.
func (r Report) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// FuelVote reports whether the report carries a fuel availability claim.
// An empty fuel list on a FUEL_AVAILABILITY report means "no fuel".
func (r Report) FuelVote() bool {
	return r.ReportType == ReportFuelAvailability || len(r.AvailableFuels) > 0
}

// Clone returns a deep copy safe to hand across goroutines
func (r Report) Clone() Report {
	out := r
	out.AvailableFuels = slices.Clone(r.AvailableFuels)
	out.PhotoURLs = slices.Clone(r.PhotoURLs)
	if r.QueueLength != nil {
		v := *r.QueueLength
		out.QueueLength = &v
	}
	if r.EstimatedWaitMinutes != nil {
		v := *r.EstimatedWaitMinutes
		out.EstimatedWaitMinutes = &v
	}
	if r.Accuracy != nil {
		v := *r.Accuracy
		out.Accuracy = &v
	}
	if r.ResolvedAt != nil {
		v := *r.ResolvedAt
		out.ResolvedAt = &v
	}
	if r.SettledAt != nil {
		v := *r.SettledAt
		out.SettledAt = &v
	}
	return out
}

type ReportInteraction struct {
	ID              string          `json:"id"`
	ReportID        string          `json:"report_id"`
	UserID          string          `json:"user_id"`
	InteractionType InteractionType `json:"interaction_type"`
	UserTrustScore  float64         `json:"user_trust_score"` // interactor trust at interaction time
	Weight          float64         `json:"weight"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type User struct {
	ID                  string    `json:"id"`
	TrustScore          float64   `json:"trust_score"`
	TotalReports        int       `json:"total_reports"`
	AccurateReports     int       `json:"accurate_reports"`
	DisputedReports     int       `json:"disputed_reports"`
	HelpfulInteractions int       `json:"helpful_interactions"`
	CreatedAt           time.Time `json:"created_at"`
	LastActive          time.Time `json:"last_active"`
	Version             int64     `json:"-"`
}

// UserCounters is an increment applied to a user's activity counters
type UserCounters struct {
	TotalReports        int
	AccurateReports     int
	DisputedReports     int
	HelpfulInteractions int
}

// Trust history reasons
const (
	ReasonAccurateReport     = "accurate_report"
	ReasonDisputedReport     = "disputed_report"
	ReasonHelpfulInteraction = "helpful_interaction"
)

type TrustScoreHistory struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	PreviousScore   float64   `json:"previous_score"`
	NewScore        float64   `json:"new_score"`
	Change          float64   `json:"change"`
	Reason          string    `json:"reason"`
	RelatedReportID string    `json:"related_report_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type UserStats struct {
	UserID              string  `json:"user_id"`
	TotalReports        int     `json:"total_reports"`
	AccurateReports     int     `json:"accurate_reports"`
	DisputedReports     int     `json:"disputed_reports"`
	AccuracyRate        float64 `json:"accuracy_rate"` // percentage of resolved reports that were confirmed
	HelpfulInteractions int     `json:"helpful_interactions"`
	CurrentTrustScore   float64 `json:"current_trust_score"`
	HighestTrustScore   float64 `json:"highest_trust_score"`
	LowestTrustScore    float64 `json:"lowest_trust_score"`
}

// StationCurrentStatus is derived from live reports and never stored as truth.
type StationCurrentStatus struct {
	StationID            string        `json:"station_id"`
	Status               StationStatus `json:"status"`
	AvailableFuels       []FuelType    `json:"available_fuels"`
	QueueLength          QueueLength   `json:"queue_length,omitempty"`
	LastUpdated          time.Time     `json:"last_updated"`
	ReportCount          int           `json:"report_count"`
	ConfidenceScore      float64       `json:"confidence_score"`
	AverageReporterTrust float64       `json:"average_reporter_trust"`
	ComputedAt           time.Time     `json:"computed_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
