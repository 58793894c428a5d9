package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leiithegreyt/driverlog/internal/domain"
	"github.com/leiithegreyt/driverlog/internal/session"
	"github.com/leiithegreyt/driverlog/testutil"
)

// These tests exercise the repository against the stub backend over real
// HTTP: transport, gateway, and repo together.

func loggedInClient(t *testing.T) (*testutil.Client, int) {
	t.Helper()
	_, baseURL, tripID := testutil.StartStub(t)
	c := testutil.NewClient(t, baseURL)
	_, err := c.Session.Login(context.Background(), "driver@example.com", "secret1")
	require.NoError(t, err)
	return c, tripID
}

// ---- profile ---------------------------------------------------------------

func TestGetDriverProfile(t *testing.T) {
	c, _ := loggedInClient(t)

	profile, err := c.Trips.GetDriverProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Dana Mokoena", profile.Name)
	assert.Equal(t, "driver", profile.Role)
}

func TestUpdateDriverProfile_roundtrip(t *testing.T) {
	c, _ := loggedInClient(t)
	ctx := context.Background()

	require.NoError(t, c.Trips.UpdateDriverProfile(ctx, domain.ProfileUpdate{Phone: "+27115550999"}))

	details, err := c.Trips.GetDriverProfileDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, "+27115550999", details.Phone)
	assert.Equal(t, "DL-44871", details.LicenseNumber)
}

// ---- trips -----------------------------------------------------------------

// TestGetAssignedTrips_coercesLooseTypes verifies the raw "shared_2" id and
// the integer is_shared_trip flag decode into usable values.
func TestGetAssignedTrips_coercesLooseTypes(t *testing.T) {
	c, _ := loggedInClient(t)

	trips, err := c.Trips.GetAssignedTrips(context.Background())
	require.NoError(t, err)
	require.Len(t, trips, 1)

	assert.Equal(t, 2, trips[0].ID.Int)
	assert.Equal(t, "shared_2", trips[0].ID.Raw)
	assert.True(t, trips[0].IsShared())
}

func TestGetTripDetails(t *testing.T) {
	c, tripID := loggedInClient(t)

	details, err := c.Trips.GetTripDetails(context.Background(), tripID)
	require.NoError(t, err)

	assert.Equal(t, "Quantum 14-seater", details.Vehicle.Name)
	require.Len(t, details.Legs, 3)
	assert.Equal(t, "Northgate Depot", details.Legs[0].Destination)
	assert.Equal(t, domain.PassengerList{"Sipho Dlamini", "Ayesha Khan"}, details.Legs[0].Passengers)
}

func TestGetTripDetails_unknownTrip(t *testing.T) {
	c, _ := loggedInClient(t)

	_, err := c.Trips.GetTripDetails(context.Background(), 9999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// ---- leg lifecycle and submission ------------------------------------------

func departArrive(t *testing.T, c *testutil.Client, tripID, legID int, odoStart, odoEnd, fuelStart, fuelEnd float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Trips.LogLegDeparture(ctx, tripID, legID, domain.DepartureRecord{
		OdometerStart:     odoStart,
		FuelStart:         fuelStart,
		Passengers:        []string{"Sipho Dlamini"},
		DepartureTime:     "08:00",
		DepartureLocation: "Base",
	}))
	require.NoError(t, c.Trips.LogLegArrival(ctx, tripID, legID, domain.ArrivalRecord{
		OdometerEnd:       odoEnd,
		FuelEnd:           fuelEnd,
		FuelUsed:          fuelStart - fuelEnd,
		PassengersDropped: []string{"Sipho Dlamini"},
		ArrivalTime:       "09:00",
		ArrivalLocation:   "Depot",
	}))
}

// TestSubmitFullSharedTrip_idempotent drives a full trip through the stub and
// verifies resubmission succeeds without a second server-side completion.
func TestSubmitFullSharedTrip_idempotent(t *testing.T) {
	c, tripID := loggedInClient(t)
	ctx := context.Background()

	departArrive(t, c, tripID, 1, 100, 150, 40, 35)
	departArrive(t, c, tripID, 2, 150, 180, 35, 32)
	departArrive(t, c, tripID, 3, 180, 220, 32, 28)

	require.NoError(t, c.Trips.SubmitFullSharedTrip(ctx, tripID))
	require.NoError(t, c.Trips.SubmitFullSharedTrip(ctx, tripID))

	// History reflects the single submitted trip with aggregated readings.
	completed, err := c.Trips.GetCompletedTrips(ctx)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.InDelta(t, 120.0, float64(completed[0].TotalDistance), 0.001)
	assert.InDelta(t, 12.0, float64(completed[0].TotalFuelUsed), 0.001)
	assert.Len(t, completed[0].Stops, 3)
}

func TestSubmitFullSharedTrip_incompleteTripFails(t *testing.T) {
	c, tripID := loggedInClient(t)

	err := c.Trips.SubmitFullSharedTrip(context.Background(), tripID)
	var serr *domain.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 409, serr.Status)
}

// ---- auth loss -------------------------------------------------------------

// TestAuthLost_firedOnRevokedToken verifies a 401 from any repository call
// clears the session and fires the auth-lost notification.
func TestAuthLost_firedOnRevokedToken(t *testing.T) {
	c, _ := loggedInClient(t)
	ctx := context.Background()

	fired := 0
	c.Session.OnAuthLost(func() { fired++ })

	// Revoke the token server-side without clearing it locally.
	require.NoError(t, c.Trips.Logout(ctx))

	_, err := c.Trips.GetAssignedTrips(ctx)
	require.Error(t, err)

	assert.Equal(t, 1, fired)
	_, ok := c.Session.CurrentToken()
	assert.False(t, ok)
	_, ok, serr := c.Store.Get(session.TokenKey)
	require.NoError(t, serr)
	assert.False(t, ok)
}

// TestUpdateFCMToken_neverFails verifies the fire-and-forget contract even
// when the session is dead.
func TestUpdateFCMToken_neverFails(t *testing.T) {
	c, _ := loggedInClient(t)
	ctx := context.Background()

	c.Trips.UpdateFCMToken(ctx, "fcm-device-token")

	c.Session.Logout(ctx)
	c.Trips.UpdateFCMToken(ctx, "fcm-device-token")
}
