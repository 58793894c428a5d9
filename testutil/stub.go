// Package testutil provides shared helpers for tests that need a running
// backend. The stub server is in-memory and started per test on an
// httptest listener, so tests need no environment setup and never collide.
package testutil

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/leiithegreyt/driverlog/internal/gateway"
	"github.com/leiithegreyt/driverlog/internal/repo"
	"github.com/leiithegreyt/driverlog/internal/session"
	"github.com/leiithegreyt/driverlog/internal/stub"
	"github.com/leiithegreyt/driverlog/internal/transport"
)

// quiet discards log output so test runs stay readable.
func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StartStub starts a stub backend with the default fixture loaded and
// returns the server, its base URL, and the seeded trip id. The server is
// shut down when the test finishes.
func StartStub(t *testing.T, opts ...stub.Option) (*stub.Server, string, int) {
	t.Helper()

	opts = append([]stub.Option{stub.WithLogger(quiet())}, opts...)
	server := stub.NewServer(opts...)
	tripID := server.SeedDefault()

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return server, ts.URL, tripID
}

// Client is a fully wired client stack pointed at a test backend.
type Client struct {
	Store   *session.MemoryStore
	Session *session.Manager
	Trips   *repo.TripRepository
}

// NewClient wires a client stack (memory secret store, session manager,
// transport, gateway, repository) against baseURL.
func NewClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	store := session.NewMemoryStore()
	mgr, err := session.NewManager(store, quiet())
	if err != nil {
		t.Fatalf("testutil.NewClient: session manager: %v", err)
	}

	tc, err := transport.New(baseURL,
		transport.WithTokenSource(mgr),
		transport.WithLogger(quiet()),
	)
	if err != nil {
		t.Fatalf("testutil.NewClient: transport: %v", err)
	}

	trips := repo.NewTripRepository(gateway.New(tc, gateway.WithLogger(quiet())), quiet())
	mgr.Bind(trips)
	return &Client{Store: store, Session: mgr, Trips: trips}
}
