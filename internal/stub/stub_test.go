package stub_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leiithegreyt/driverlog/internal/stub"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, opts ...stub.Option) (*stub.Server, string, int) {
	t.Helper()
	opts = append([]stub.Option{stub.WithLogger(quiet())}, opts...)
	s := stub.NewServer(opts...)
	tripID := s.SeedDefault()
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts.URL, tripID
}

func login(t *testing.T, baseURL string) string {
	t.Helper()
	body := strings.NewReader(`{"email":"driver@example.com","password":"secret1"}`)
	resp, err := http.Post(baseURL+"/driver/login", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func request(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ---- auth ------------------------------------------------------------------

func TestLogin_wrongPassword(t *testing.T) {
	_, baseURL, _ := startServer(t)

	body := strings.NewReader(`{"email":"driver@example.com","password":"nope"}`)
	resp, err := http.Post(baseURL+"/driver/login", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var out struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "invalid_credentials", out.Code)
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	_, baseURL, _ := startServer(t)

	resp := request(t, http.MethodGet, baseURL+"/driver/trips", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// TestLogout_revokesToken verifies a logged-out token is refused even though
// it has not expired.
func TestLogout_revokesToken(t *testing.T) {
	_, baseURL, _ := startServer(t)
	token := login(t, baseURL)

	resp := request(t, http.MethodPost, baseURL+"/logout", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = request(t, http.MethodGet, baseURL+"/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ---- trip list shape -------------------------------------------------------

// TestTrips_looseTypedListEntries verifies the list emits the production
// backend's loose typing: raw string ids and integer boolean flags.
func TestTrips_looseTypedListEntries(t *testing.T) {
	_, baseURL, _ := startServer(t)
	token := login(t, baseURL)

	resp := request(t, http.MethodGet, baseURL+"/driver/trips", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Count int              `json:"count"`
		Trips []map[string]any `json:"trips"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 1, out.Count)

	assert.Equal(t, "shared_2", out.Trips[0]["id"])
	assert.EqualValues(t, 1, out.Trips[0]["is_shared_trip"])
}

// ---- leg lifecycle ---------------------------------------------------------

func TestDepart_rejectsWrongState(t *testing.T) {
	_, baseURL, _ := startServer(t)
	token := login(t, baseURL)
	url := baseURL + "/driver/trips/2/legs/1/depart"

	resp := request(t, http.MethodPost, url, token, `{"odometer_start":100,"fuel_start":40,"passengers":["Sipho Dlamini"],"departure_time":"08:00","departure_location":"Base"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Departing an in-progress leg is a state conflict.
	resp = request(t, http.MethodPost, url, token, `{"odometer_start":100,"fuel_start":40,"passengers":["Sipho Dlamini"],"departure_time":"08:05","departure_location":"Base"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var out struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "invalid_state", out.Code)
}

func TestArrive_requiresInProgress(t *testing.T) {
	_, baseURL, _ := startServer(t)
	token := login(t, baseURL)

	resp := request(t, http.MethodPost, baseURL+"/driver/trips/2/legs/1/arrive", token, `{"odometer_end":150,"fuel_end":35,"arrival_time":"09:00","arrival_location":"Northgate Depot"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// ---- submission ------------------------------------------------------------

func completeAllLegs(t *testing.T, baseURL, token string) {
	t.Helper()
	for leg := 1; leg <= 3; leg++ {
		prefix := baseURL + "/driver/trips/2/legs/" + strconv.Itoa(leg)
		resp := request(t, http.MethodPost, prefix+"/depart", token,
			`{"odometer_start":100,"fuel_start":40,"passengers":["Sipho Dlamini"],"departure_time":"08:00","departure_location":"Base"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp = request(t, http.MethodPost, prefix+"/arrive", token,
			`{"odometer_end":150,"fuel_end":35,"arrival_time":"09:00","arrival_location":"Depot"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestSubmit_incompleteTripIsConflict(t *testing.T) {
	server, baseURL, tripID := startServer(t)
	token := login(t, baseURL)

	resp := request(t, http.MethodPost, baseURL+"/driver/trips/2/submit", token, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 1, server.Submissions(tripID))
}

// TestSubmit_idempotentByTripID verifies the second submit request is a no-op
// success and the trip moves to the completed list exactly once.
func TestSubmit_idempotentByTripID(t *testing.T) {
	server, baseURL, tripID := startServer(t)
	token := login(t, baseURL)
	completeAllLegs(t, baseURL, token)

	resp := request(t, http.MethodPost, baseURL+"/driver/trips/2/submit", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = request(t, http.MethodPost, baseURL+"/driver/trips/2/submit", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, server.Submissions(tripID))

	// Submitted trips leave the assigned list and appear in history.
	resp = request(t, http.MethodGet, baseURL+"/driver/trips", token, "")
	var assigned struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&assigned))
	assert.Zero(t, assigned.Count)

	resp = request(t, http.MethodGet, baseURL+"/driver/trips/completed", token, "")
	var completed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&completed))
	assert.Equal(t, 1, completed.Count)
}

// TestTripDetails_concurrentWithLegUpdates verifies detail reads are safe
// while depart/arrive mutate the same trip's legs: the response is a snapshot
// taken under the server's lock, never a view of shared mutable state.
func TestTripDetails_concurrentWithLegUpdates(t *testing.T) {
	_, baseURL, _ := startServer(t)
	token := login(t, baseURL)

	done := make(chan struct{})
	readErr := make(chan error, 1)
	go func() {
		defer close(readErr)
		for {
			select {
			case <-done:
				return
			default:
			}
			req, _ := http.NewRequest(http.MethodGet, baseURL+"/driver/trips/2", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				readErr <- err
				return
			}
			var details struct {
				Legs []json.RawMessage `json:"legs"`
			}
			err = json.NewDecoder(resp.Body).Decode(&details)
			resp.Body.Close()
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	completeAllLegs(t, baseURL, token)
	close(done)
	require.NoError(t, <-readErr)
}

// ---- response noise --------------------------------------------------------

// TestResponseNoise verifies WithResponseNoise prepends raw text before the
// JSON, the shape clients must sanitize away.
func TestResponseNoise(t *testing.T) {
	_, baseURL, _ := startServer(t, stub.WithResponseNoise("DEBUG: booted\n"))

	body := strings.NewReader(`{"email":"driver@example.com","password":"secret1"}`)
	resp, err := http.Post(baseURL+"/driver/login", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte("DEBUG: booted\n")))

	// The remainder is still well-formed JSON.
	var out struct {
		AccessToken string `json:"access_token"`
	}
	trimmed := raw[bytes.IndexByte(raw, '{'):]
	require.NoError(t, json.Unmarshal(trimmed, &out))
	assert.NotEmpty(t, out.AccessToken)
}
