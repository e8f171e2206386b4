// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"time"

	"github.com/danielhkuo/fuelwatch/models"
)

// Region is the service area reports must fall inside (inclusive)
type Region struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

func (r Region) Contains(lat, lon float64) bool {
	return lat >= r.MinLat && lat <= r.MaxLat && lon >= r.MinLon && lon <= r.MaxLon
}

type RateLimit struct {
	MaxReports int           `yaml:"max_reports"`
	Window     time.Duration `yaml:"window"`
}

type Settings struct {
	Region            Region                              `yaml:"region"`
	MaxPhotos         int                                 `yaml:"max_photos"`
	MaxQueueLength    int                                 `yaml:"max_queue_length"`
	MaxWaitMinutes    int                                 `yaml:"max_wait_minutes"`
	MaxAccuracyMeters float64                             `yaml:"max_accuracy_meters"`
	RateLimit         RateLimit                           `yaml:"rate_limit"`
	TTL               map[models.ReportType]time.Duration `yaml:"ttl"`
}

// DefaultSettings covers Venezuela, where queue and status reports go
// stale within the hour and prices hold for a day.
func DefaultSettings() Settings {
	return Settings{
		Region:            Region{MinLat: 0, MaxLat: 13, MinLon: -74, MaxLon: -59},
		MaxPhotos:         5,
		MaxQueueLength:    500,
		MaxWaitMinutes:    480,
		MaxAccuracyMeters: 1000,
		RateLimit:         RateLimit{MaxReports: 3, Window: 30 * time.Minute},
		TTL: map[models.ReportType]time.Duration{
			models.ReportStatusUpdate:     2 * time.Hour,
			models.ReportQueueLength:      time.Hour,
			models.ReportFuelAvailability: 3 * time.Hour,
			models.ReportPriceUpdate:      24 * time.Hour,
		},
	}
}

const fallbackTTL = 2 * time.Hour

// TTLFor returns how long a report of type t stays live
func (s Settings) TTLFor(t models.ReportType) time.Duration {
	if ttl, ok := s.TTL[t]; ok && ttl > 0 {
		return ttl
	}
	return fallbackTTL
}
