// Package stub implements an in-memory development backend exposing the
// REST surface the driver client consumes. It exists so the client can be
// developed and tested end-to-end without the production backend, and it is
// the executable statement of the wire contract: paths, payload shapes, and
// error codes match what the client expects.
//
// State lives in memory and is lost on restart, so the stub starts with
// zero setup.
package stub

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/leiithegreyt/driverlog/internal/domain"
	"github.com/leiithegreyt/driverlog/internal/middleware"
)

// maxBodySize caps incoming request bodies at 1 MiB.
const maxBodySize = 1 << 20

// Server is the stub backend. Safe for concurrent use.
type Server struct {
	log         *slog.Logger
	secret      []byte
	noise       string
	corsOrigins []string

	mu          sync.Mutex
	drivers     map[string]*driverState // keyed by email
	trips       map[int]*tripState
	revoked     map[string]bool
	fcmTokens   map[int]string
	submissions map[int]int
	nextTripID  int
}

type driverState struct {
	profile  domain.ProfileDetails
	password string
}

type tripState struct {
	details   domain.TripDetails
	submitted bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithJWTSecret sets the token signing secret.
func WithJWTSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithResponseNoise prepends noise to every JSON response body, emulating
// the production backend's habit of leaking debug output before the JSON.
// Clients must sanitize; this option lets tests prove theirs does.
func WithResponseNoise(noise string) Option {
	return func(s *Server) { s.noise = noise }
}

// NewServer constructs an empty stub backend. Seed it with SeedDriver and
// SeedTrip, or call SeedDefault for the standard development fixture.
func NewServer(opts ...Option) *Server {
	s := &Server{
		secret:      []byte("driverlog-dev-secret"),
		drivers:     make(map[string]*driverState),
		trips:       make(map[int]*tripState),
		revoked:     make(map[string]bool),
		fcmTokens:   make(map[int]string),
		submissions: make(map[int]int),
		nextTripID:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// SeedDriver registers a driver account.
func (s *Server) SeedDriver(profile domain.ProfileDetails, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[profile.Email] = &driverState{profile: profile, password: password}
}

// SeedTrip registers a trip and returns its id.
func (s *Server) SeedTrip(details domain.TripDetails) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if details.ID.Int == 0 {
		details.ID = domain.FlexID{Int: s.nextTripID}
	}
	if details.ID.Int >= s.nextTripID {
		s.nextTripID = details.ID.Int + 1
	}
	s.trips[details.ID.Int] = &tripState{details: details}
	return details.ID.Int
}

// SeedDefault loads the standard development fixture: one approved driver
// (driver@example.com / secret1) and one 3-leg shared trip. Returns the
// trip id.
func (s *Server) SeedDefault() int {
	s.SeedDriver(domain.ProfileDetails{
		DriverProfile: domain.DriverProfile{
			ID:             domain.FlexID{Int: 1},
			Name:           "Dana Mokoena",
			Email:          "driver@example.com",
			Phone:          "+27115550123",
			Role:           "driver",
			ApprovalStatus: domain.ApprovalApproved,
			IsActive:       true,
		},
		LicenseNumber: "DL-44871",
	}, "secret1")

	return s.SeedTrip(domain.TripDetails{
		Trip: domain.Trip{
			ID:         domain.FlexID{Int: 2, Raw: "shared_2"},
			TripType:   domain.TripShared,
			TravelDate: "2026-09-01",
			Purpose:    "team transport",
		},
		Vehicle: domain.Vehicle{ID: domain.FlexID{Int: 7}, Name: "Quantum 14-seater", PlateNumber: "GP 612-441"},
		Legs: []domain.SharedTripLeg{
			{
				LegID:       domain.FlexID{Int: 1},
				TeamName:    "Alpha",
				Destination: "Northgate Depot",
				Status:      domain.LegApproved,
				Passengers:  domain.PassengerList{"Sipho Dlamini", "Ayesha Khan"},
			},
			{
				LegID:       domain.FlexID{Int: 2},
				TeamName:    "Bravo",
				Destination: "Midrand Office",
				Status:      domain.LegPending,
				Passengers:  domain.PassengerList{"Lerato Molefe"},
			},
			{
				LegID:       domain.FlexID{Int: 3},
				TeamName:    "Charlie",
				Destination: "Southdale Plant",
				Status:      domain.LegPending,
				Passengers:  domain.PassengerList{"Chris van Wyk", "Naledi Sithole"},
			},
		},
	})
}

// Submissions reports how many submit requests a trip has received.
// Test introspection hook.
func (s *Server) Submissions(tripID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions[tripID]
}

// Router builds the HTTP handler with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewSlogLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(s.corsOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(maxBodySize))

	r.Post("/driver/login", s.handleLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.NewBearerAuth(s.secret, s.isRevoked))
		pr.Get("/me", s.handleMe)
		pr.Get("/driver/profile-details", s.handleProfileDetails)
		pr.Patch("/driver/profile", s.handleProfileUpdate)
		pr.Get("/driver/trips", s.handleTrips)
		pr.Get("/driver/trips/completed", s.handleCompletedTrips)
		pr.Get("/driver/trips/{tripID}", s.handleTripDetails)
		pr.Post("/driver/trips/{tripID}/legs/{legID}/depart", s.handleDepart)
		pr.Post("/driver/trips/{tripID}/legs/{legID}/arrive", s.handleArrive)
		pr.Post("/driver/trips/{tripID}/submit", s.handleSubmit)
		pr.Post("/driver/fcm-token", s.handleFCMToken)
		pr.Post("/logout", s.handleLogout)
	})

	return r
}

func (s *Server) isRevoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token]
}
