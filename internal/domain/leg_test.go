package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leiithegreyt/driverlog/internal/domain"
)

// ---- distance & fuel -------------------------------------------------------

func TestLeg_Distance(t *testing.T) {
	leg := domain.SharedTripLeg{OdometerStart: 100, OdometerEnd: 150}
	assert.InDelta(t, 50, leg.Distance(), 1e-9)
}

// TestLeg_Distance_neverNegative verifies a reversed odometer pair yields 0,
// never a negative distance.
func TestLeg_Distance_neverNegative(t *testing.T) {
	leg := domain.SharedTripLeg{OdometerStart: 150, OdometerEnd: 100}
	assert.Zero(t, leg.Distance())
}

func TestLeg_Distance_noEndReading(t *testing.T) {
	leg := domain.SharedTripLeg{OdometerStart: 100}
	assert.Zero(t, leg.Distance())
}

func TestLeg_FuelUsed(t *testing.T) {
	leg := domain.SharedTripLeg{FuelStart: 40, FuelPurchased: 10, FuelEnd: 35}
	assert.InDelta(t, 15, leg.FuelUsed(), 1e-9)
}

// TestLeg_FuelUsed_clampedToZero verifies the fuel balance never goes
// negative even when the end reading exceeds start plus purchased.
func TestLeg_FuelUsed_clampedToZero(t *testing.T) {
	leg := domain.SharedTripLeg{FuelStart: 30, FuelEnd: 45}
	assert.Zero(t, leg.FuelUsed())
}

// ---- status ----------------------------------------------------------------

func TestLegStatus_transitions(t *testing.T) {
	assert.True(t, domain.LegPending.CanDepart())
	assert.True(t, domain.LegApproved.CanDepart())
	assert.False(t, domain.LegInProgress.CanDepart())
	assert.False(t, domain.LegCompleted.CanDepart())
	assert.True(t, domain.LegCompleted.Terminal())
}

// TestLegStatus_toleratesWireVariants verifies the decoder normalizes the
// spellings the backend has been seen to emit.
func TestLegStatus_toleratesWireVariants(t *testing.T) {
	for wire, want := range map[string]domain.LegStatus{
		`"in_progress"`: domain.LegInProgress,
		`"in-progress"`: domain.LegInProgress,
		`"COMPLETED"`:   domain.LegCompleted,
		`"approved"`:    domain.LegApproved,
		`""`:            domain.LegPending,
		`"mystery"`:     domain.LegPending,
	} {
		var s domain.LegStatus
		require.NoError(t, json.Unmarshal([]byte(wire), &s), wire)
		assert.Equal(t, want, s, wire)
	}
}

// ---- shared-trip detection -------------------------------------------------

// TestTrip_IsShared covers every signal the backend uses to mark a trip as
// shared; any one of them is sufficient.
func TestTrip_IsShared(t *testing.T) {
	shared := domain.FlexID{Int: 4}

	cases := map[string]domain.Trip{
		"trip_type":      {TripType: domain.TripShared},
		"key prefix":     {ID: domain.FlexID{Int: 2, Raw: "shared_2"}},
		"integer flag":   {IsSharedTrip: true},
		"shared_trip_id": {SharedTripID: &shared},
	}
	for name, trip := range cases {
		assert.True(t, trip.IsShared(), name)
	}

	assert.False(t, domain.Trip{TripType: domain.TripIndividual, ID: domain.FlexID{Int: 3}}.IsShared())
}

// ---- leg ordering ----------------------------------------------------------

// TestOrderLegs_scheduledDeparture verifies legs sort by scheduled departure
// when every leg has one.
func TestOrderLegs_scheduledDeparture(t *testing.T) {
	legs := []domain.SharedTripLeg{
		{LegID: domain.FlexID{Int: 2}, ScheduledDeparture: "09:30"},
		{LegID: domain.FlexID{Int: 1}, ScheduledDeparture: "07:00"},
		{LegID: domain.FlexID{Int: 3}, ScheduledDeparture: "08:15"},
	}
	domain.OrderLegs(legs)

	assert.Equal(t, 1, legs[0].LegID.Int)
	assert.Equal(t, 3, legs[1].LegID.Int)
	assert.Equal(t, 2, legs[2].LegID.Int)
}

// TestOrderLegs_partialSchedule verifies backend order is kept when any leg
// lacks a scheduled departure.
func TestOrderLegs_partialSchedule(t *testing.T) {
	legs := []domain.SharedTripLeg{
		{LegID: domain.FlexID{Int: 2}, ScheduledDeparture: "09:30"},
		{LegID: domain.FlexID{Int: 1}},
	}
	domain.OrderLegs(legs)

	assert.Equal(t, 2, legs[0].LegID.Int)
	assert.Equal(t, 1, legs[1].LegID.Int)
}
