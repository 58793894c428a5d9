// Package domain contains the core data types for the driver trip log.
// This package has zero external dependencies and is imported by every other
// internal package (transport, gateway, repo, session, service).
package domain

import "strings"

// TripType distinguishes a single point-to-point trip from a shared trip
// serving several teams via sequential legs.
type TripType string

const (
	TripIndividual TripType = "individual"
	TripShared     TripType = "shared"
)

// Trip is one assignment in the driver's trip list.
type Trip struct {
	ID           FlexID   `json:"id"`
	Destination  string   `json:"destination"`
	Purpose      string   `json:"purpose,omitempty"`
	TravelDate   string   `json:"travel_date,omitempty"` // "2006-01-02"
	TravelTime   string   `json:"travel_time,omitempty"` // "15:04"
	Status       string   `json:"status,omitempty"`
	TripType     TripType `json:"trip_type,omitempty"`
	SharedTripID *FlexID  `json:"shared_trip_id,omitempty"`
	IsSharedTrip FlexBool `json:"is_shared_trip,omitempty"`
}

// IsShared reports whether this trip is a multi-leg shared trip. The backend
// signals this in several inconsistent ways; any one of them counts.
func (t Trip) IsShared() bool {
	return t.TripType == TripShared ||
		strings.HasPrefix(t.ID.Raw, "shared_") ||
		bool(t.IsSharedTrip) ||
		t.SharedTripID != nil
}

// Vehicle is the vehicle assigned to a trip.
type Vehicle struct {
	ID          FlexID `json:"id"`
	Name        string `json:"name,omitempty"`
	PlateNumber string `json:"plate_number,omitempty"`
}

// TripDetails is the full record for one trip, including the vehicle and the
// ordered leg list for shared trips. Individual trips have a single leg.
type TripDetails struct {
	Trip
	Vehicle    Vehicle         `json:"vehicle"`
	Passengers PassengerList   `json:"passengers"`
	Legs       []SharedTripLeg `json:"legs"`
}

// CompletedStop is one stop in the denormalized history view of a trip.
type CompletedStop struct {
	Destination string `json:"destination"`
	ArrivalTime string `json:"arrival_time,omitempty"`
}

// CompletedTrip is the read model for a finished trip, used only for the
// historical log display.
type CompletedTrip struct {
	ID            FlexID          `json:"id"`
	Destination   string          `json:"destination"`
	Purpose       string          `json:"purpose,omitempty"`
	TravelDate    string          `json:"travel_date,omitempty"`
	CompletedAt   string          `json:"completed_at,omitempty"`
	TotalDistance FlexFloat       `json:"total_distance,omitempty"`
	TotalFuelUsed FlexFloat       `json:"total_fuel_used,omitempty"`
	Stops         []CompletedStop `json:"stops,omitempty"`
}
