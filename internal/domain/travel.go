// Package domain — travel-time types.
package domain

import "strings"

// TransportMode matches the routing API's mode parameter.
type TransportMode string

const (
	ModeDriving   TransportMode = "driving"
	ModeTransit   TransportMode = "transit"
	ModeWalking   TransportMode = "walking"
	ModeBicycling TransportMode = "bicycling"
)

// TravelSource records which path produced a travel result.
type TravelSource string

const (
	TravelSourceAPI       TravelSource = "api"
	TravelSourceSimulated TravelSource = "simulated"
)

// TravelQuery asks for the travel time between two localities.
type TravelQuery struct {
	Origin        string        `json:"origin"`
	Destination   string        `json:"destination"`
	Mode          TransportMode `json:"mode"`
	DepartureTime string        `json:"departure_time,omitempty"` // HH:MM local, transit only
}

// DepartureBucket collapses the departure time to the hour so nearby
// departures share one cache entry. Queries without a departure time share
// the "now" bucket.
func (q TravelQuery) DepartureBucket() string {
	if q.DepartureTime == "" {
		return "now"
	}
	if i := strings.IndexByte(q.DepartureTime, ':'); i > 0 {
		return q.DepartureTime[:i] + ":00"
	}
	return q.DepartureTime
}

// CacheKey identifies the query in the travel cache.
func (q TravelQuery) CacheKey() string {
	return strings.ToLower(strings.TrimSpace(q.Origin)) + "|" +
		strings.ToLower(strings.TrimSpace(q.Destination)) + "|" +
		string(q.Mode) + "|" + q.DepartureBucket()
}

// TransitLeg is one leg of a transit route.
type TransitLeg struct {
	Line    string `json:"line"`
	Vehicle string `json:"vehicle"`
}

// TravelResult is a resolved travel time. Source distinguishes real routing
// API answers from the deterministic estimator.
type TravelResult struct {
	DurationMinutes float64       `json:"duration_minutes"`
	DistanceKm      float64       `json:"distance_km"`
	Mode            TransportMode `json:"mode"`
	Summary         string        `json:"summary,omitempty"`
	TransitLegs     []TransitLeg  `json:"transit_legs,omitempty"`
	Source          TravelSource  `json:"source"`
}
