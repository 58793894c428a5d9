package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// LegStatus is the lifecycle state of a single leg. Status only moves
// forward: pending/approved -> in_progress -> completed. Pending and
// Approved are equivalent "not yet departed" states for transition purposes.
type LegStatus string

const (
	LegPending    LegStatus = "pending"
	LegApproved   LegStatus = "approved"
	LegInProgress LegStatus = "in_progress"
	LegCompleted  LegStatus = "completed"
)

// CanDepart reports whether a depart action is legal from this status.
func (s LegStatus) CanDepart() bool {
	return s == LegPending || s == LegApproved
}

// Terminal reports whether the leg has reached its final state.
func (s LegStatus) Terminal() bool { return s == LegCompleted }

func (s *LegStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("domain.LegStatus: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pending":
		*s = LegPending
	case "approved":
		*s = LegApproved
	case "in_progress", "in-progress", "in progress", "inprogress":
		*s = LegInProgress
	case "completed", "complete", "done":
		*s = LegCompleted
	default:
		// Unknown statuses are treated as not-yet-departed rather than
		// rejected, so a new backend status cannot brick the client.
		*s = LegPending
	}
	return nil
}

// SharedTripLeg is one point-to-point segment of a shared trip with its own
// departure and arrival record. Legs belong to exactly one trip; they are
// created when the backend assigns the trip and never deleted client-side.
type SharedTripLeg struct {
	LegID       FlexID        `json:"leg_id"`
	TeamName    string        `json:"team_name,omitempty"`
	Destination string        `json:"destination"`
	Status      LegStatus     `json:"status"`
	Passengers  PassengerList `json:"passengers"`

	// Scheduled departure, when the backend provides one. Used only for
	// ordering legs within a trip.
	ScheduledDeparture string `json:"scheduled_departure,omitempty"`

	OdometerStart FlexFloat `json:"odometer_start,omitempty"`
	OdometerEnd   FlexFloat `json:"odometer_end,omitempty"`
	FuelStart     FlexFloat `json:"fuel_start,omitempty"`
	FuelEnd       FlexFloat `json:"fuel_end,omitempty"`
	FuelPurchased FlexFloat `json:"fuel_purchased,omitempty"`

	DepartureLocation string `json:"departure_location,omitempty"`
	DepartureTime     string `json:"departure_time,omitempty"`
	ArrivalLocation   string `json:"arrival_location,omitempty"`
	ArrivalTime       string `json:"arrival_time,omitempty"`
	Notes             string `json:"notes,omitempty"`

	// ConfirmedPassengers is the subset of Passengers actually on board
	// when the leg departed. Set by the depart action.
	ConfirmedPassengers PassengerList `json:"confirmed_passengers,omitempty"`

	// OverrideReason is the driver-entered justification for departing
	// without the full assigned manifest.
	OverrideReason string `json:"override_reason,omitempty"`

	// Return is the optional return-to-base journey attached to the leg
	// that brings the vehicle back to its origin.
	Return *ReturnJourney `json:"return_journey,omitempty"`
}

// Distance returns the distance covered by this leg in km. A reading pair
// where end < start yields 0, never a negative distance.
func (l SharedTripLeg) Distance() float64 {
	d := float64(l.OdometerEnd) - float64(l.OdometerStart)
	if l.OdometerEnd == 0 || d < 0 {
		return 0
	}
	return d
}

// FuelUsed returns liters consumed: fuel_start + fuel_purchased - fuel_end,
// clamped to zero.
func (l SharedTripLeg) FuelUsed() float64 {
	u := float64(l.FuelStart) + float64(l.FuelPurchased) - float64(l.FuelEnd)
	if u < 0 {
		return 0
	}
	return u
}

// OrderLegs sorts legs into sequencing order: ascending scheduled departure
// when every leg carries one, otherwise the order the backend returned.
func OrderLegs(legs []SharedTripLeg) {
	for _, leg := range legs {
		if leg.ScheduledDeparture == "" {
			return
		}
	}
	sort.SliceStable(legs, func(i, j int) bool {
		return legs[i].ScheduledDeparture < legs[j].ScheduledDeparture
	})
}

// ReturnJourney has the same field shape as a leg's execution record but is
// carried as a sub-record of its parent leg rather than a standalone leg.
type ReturnJourney struct {
	OdometerStart FlexFloat `json:"odometer_start,omitempty"`
	OdometerEnd   FlexFloat `json:"odometer_end,omitempty"`
	FuelStart     FlexFloat `json:"fuel_start,omitempty"`
	FuelEnd       FlexFloat `json:"fuel_end,omitempty"`
	FuelPurchased FlexFloat `json:"fuel_purchased,omitempty"`

	DepartureLocation string `json:"departure_location,omitempty"`
	DepartureTime     string `json:"departure_time,omitempty"`
	ArrivalLocation   string `json:"arrival_location,omitempty"`
	ArrivalTime       string `json:"arrival_time,omitempty"`
}

// DepartureRecord is the wire payload for logging a leg departure.
type DepartureRecord struct {
	OdometerStart     float64  `json:"odometer_start"`
	FuelStart         float64  `json:"fuel_start"`
	Passengers        []string `json:"passengers"`
	DepartureTime     string   `json:"departure_time"`
	DepartureLocation string   `json:"departure_location"`
	OverrideReason    string   `json:"override_reason,omitempty"`
}

// ArrivalRecord is the wire payload for logging a leg arrival, which also
// completes the leg.
type ArrivalRecord struct {
	OdometerEnd       float64        `json:"odometer_end"`
	FuelEnd           float64        `json:"fuel_end"`
	FuelUsed          float64        `json:"fuel_used"`
	FuelPurchased     float64        `json:"fuel_purchased,omitempty"`
	PassengersDropped []string       `json:"passengers_dropped"`
	ArrivalTime       string         `json:"arrival_time"`
	ArrivalLocation   string         `json:"arrival_location"`
	Notes             string         `json:"notes,omitempty"`
	Return            *ReturnJourney `json:"return_journey,omitempty"`
}
