package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leiithegreyt/driverlog/internal/domain"
	"github.com/leiithegreyt/driverlog/internal/gateway"
	"github.com/leiithegreyt/driverlog/internal/transport"
)

// newGateway wires a Gateway against a handcrafted handler.
func newGateway(t *testing.T, h http.HandlerFunc, opts ...gateway.Option) *gateway.Gateway {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	tc, err := transport.New(ts.URL)
	require.NoError(t, err)
	return gateway.New(tc, opts...)
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

// ---- login -----------------------------------------------------------------

func TestLogin_success(t *testing.T) {
	g := newGateway(t, jsonReply(http.StatusOK,
		`{"access_token":"tok-1","user":{"id":4,"name":"Dana Mokoena","email":"driver@example.com","role":"driver","approval_status":"approved","is_active":1}}`))

	creds, err := g.Login(context.Background(), "driver@example.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "tok-1", creds.AccessToken)
	assert.Equal(t, "Dana Mokoena", creds.User.Name)
	assert.True(t, bool(creds.User.IsActive))
}

func TestLogin_invalidCredentials(t *testing.T) {
	g := newGateway(t, jsonReply(http.StatusUnauthorized, `{"code":"invalid_credentials"}`))

	_, err := g.Login(context.Background(), "driver@example.com", "wrong")

	var aerr *domain.AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, domain.InvalidCredentials, aerr.Kind)
}

// ---- signal table ----------------------------------------------------------

// TestCheckStatus_signalTable walks every approval-state code the default
// table recognizes and verifies the mapped AuthError carries the embedded
// profile when the backend includes one.
func TestCheckStatus_signalTable(t *testing.T) {
	tests := []struct {
		code string
		want domain.AuthKind
	}{
		{"pending_approval", domain.PendingApproval},
		{"account_declined", domain.Declined},
		{"account_inactive", domain.InactiveAccount},
		{"not_a_driver", domain.NotDriver},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			g := newGateway(t, jsonReply(http.StatusForbidden,
				`{"code":"`+tc.code+`","user":{"id":9,"name":"Pending Person"}}`))

			_, err := g.Me(context.Background())

			var aerr *domain.AuthError
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, tc.want, aerr.Kind)
			require.NotNil(t, aerr.Profile)
			assert.Equal(t, "Pending Person", aerr.Profile.Name)
		})
	}
}

// TestCheckStatus_errorFieldFallback verifies the code is also read from the
// legacy "error" field when "code" is absent.
func TestCheckStatus_errorFieldFallback(t *testing.T) {
	g := newGateway(t, jsonReply(http.StatusForbidden, `{"error":"pending_approval"}`))

	_, err := g.Me(context.Background())

	var aerr *domain.AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, domain.PendingApproval, aerr.Kind)
}

func TestCheckStatus_customSignals(t *testing.T) {
	signals := gateway.DefaultErrorSignals()
	signals.Declined = append(signals.Declined, "driver_rejected")
	g := newGateway(t, jsonReply(http.StatusForbidden, `{"code":"driver_rejected"}`),
		gateway.WithErrorSignals(signals))

	_, err := g.Me(context.Background())

	var aerr *domain.AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, domain.Declined, aerr.Kind)
}

// ---- generic error mapping -------------------------------------------------

func TestCheckStatus_notFound(t *testing.T) {
	g := newGateway(t, jsonReply(http.StatusNotFound, `{"code":"not_found"}`))

	_, err := g.TripDetails(context.Background(), 99)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// TestCheckStatus_serverErrorFallback verifies unknown codes, including
// non-JSON bodies, surface as ServerError with the status preserved.
func TestCheckStatus_serverErrorFallback(t *testing.T) {
	g := newGateway(t, jsonReply(http.StatusInternalServerError, "<html>boom</html>"))

	_, err := g.Me(context.Background())

	var serr *domain.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusInternalServerError, serr.Status)
	assert.Contains(t, serr.Body, "boom")
}

// ---- list decoding ---------------------------------------------------------

// TestAssignedTrips_decodesWrappedList covers the wrapped list shape and the
// loose-typed trip id coming back as a raw string.
func TestAssignedTrips_decodesWrappedList(t *testing.T) {
	g := newGateway(t, jsonReply(http.StatusOK,
		`{"message":"ok","count":1,"trips":[{"id":"shared_2","trip_type":"shared","is_shared_trip":1}]}`))

	trips, err := g.AssignedTrips(context.Background())
	require.NoError(t, err)

	require.Len(t, trips, 1)
	assert.Equal(t, 2, trips[0].ID.Int)
	assert.True(t, trips[0].IsShared())
}

// ---- submission ------------------------------------------------------------

// TestSubmitTrip_idempotencyKeyIsDeterministic verifies the same trip always
// submits with the same Idempotency-Key.
func TestSubmitTrip_idempotencyKeyIsDeterministic(t *testing.T) {
	var keys []string
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		w.Write([]byte(`{"message":"submitted"}`))
	})

	require.NoError(t, g.SubmitTrip(context.Background(), 2))
	require.NoError(t, g.SubmitTrip(context.Background(), 2))

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
}

func TestLegDeparture_postsRecord(t *testing.T) {
	var gotPath string
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"message":"departed"}`))
	})

	rec := domain.DepartureRecord{
		OdometerStart:     100,
		FuelStart:         40,
		DepartureTime:     "08:15",
		DepartureLocation: "Base",
		Passengers:        []string{"Sipho Dlamini"},
	}
	require.NoError(t, g.LegDeparture(context.Background(), 2, 1, rec))
	assert.Equal(t, "/driver/trips/2/legs/1/depart", gotPath)
}
