// Package gateway is the typed request/response layer over the resilient
// transport. It knows the backend's paths and payload shapes and converts
// HTTP statuses and error bodies into the domain error taxonomy. No leg or
// trip business rules live here.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/leiithegreyt/driverlog/internal/domain"
	"github.com/leiithegreyt/driverlog/internal/transport"
)

// idempotencyNamespace seeds the deterministic per-trip idempotency key for
// trip submission. Resubmitting the same trip always carries the same key.
var idempotencyNamespace = uuid.MustParse("6f1c2a54-9d83-4bfa-9353-0c07ad14bb10")

// ErrorSignals maps backend error codes to AuthError variants. The exact
// signal per variant is a deployment-level contract; override the defaults
// via WithErrorSignals when the backend differs.
type ErrorSignals struct {
	PendingApproval []string
	Declined        []string
	InactiveAccount []string
	NotDriver       []string
}

// DefaultErrorSignals matches the codes emitted by the stub backend.
func DefaultErrorSignals() ErrorSignals {
	return ErrorSignals{
		PendingApproval: []string{"pending_approval"},
		Declined:        []string{"account_declined"},
		InactiveAccount: []string{"account_inactive"},
		NotDriver:       []string{"not_a_driver"},
	}
}

// Gateway issues typed calls against the backend REST surface.
type Gateway struct {
	t       *transport.Client
	signals ErrorSignals
	log     *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithErrorSignals overrides the backend error-code table.
func WithErrorSignals(s ErrorSignals) Option {
	return func(g *Gateway) { g.signals = s }
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// New constructs a Gateway over the given transport client.
func New(t *transport.Client, opts ...Option) *Gateway {
	g := &Gateway{t: t, signals: DefaultErrorSignals()}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g
}

// Credentials is the successful login result.
type Credentials struct {
	AccessToken string               `json:"access_token"`
	User        domain.DriverProfile `json:"user"`
}

// tripListResponse wraps the assigned and completed trip lists.
type tripListResponse[T any] struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
	Trips   []T    `json:"trips"`
}

// errorBody is the shape of backend error responses. Code drives the signal
// table; User is present for the approval-state variants.
type errorBody struct {
	Code    string                `json:"code"`
	Error   string                `json:"error"`
	Message string                `json:"message"`
	User    *domain.DriverProfile `json:"user"`
}

// Login authenticates with email and password. 401 maps to
// InvalidCredentials; approval-state refusals map per the signal table.
func (g *Gateway) Login(ctx context.Context, email, password string) (Credentials, error) {
	body := map[string]string{"email": email, "password": password}
	reply, err := g.t.Do(ctx, http.MethodPost, "/driver/login", body)
	if err != nil {
		return Credentials{}, fmt.Errorf("gateway.Login: %w", err)
	}
	if reply.Status == http.StatusUnauthorized {
		return Credentials{}, &domain.AuthError{Kind: domain.InvalidCredentials}
	}
	if err := g.checkStatus(reply); err != nil {
		return Credentials{}, err
	}
	var creds Credentials
	if err := reply.Decode(&creds); err != nil {
		return Credentials{}, fmt.Errorf("gateway.Login: %w", err)
	}
	return creds, nil
}

// Me fetches the authenticated user from /me.
func (g *Gateway) Me(ctx context.Context) (domain.DriverProfile, error) {
	var profile domain.DriverProfile
	if err := g.get(ctx, "/me", &profile); err != nil {
		return domain.DriverProfile{}, fmt.Errorf("gateway.Me: %w", err)
	}
	return profile, nil
}

// ProfileDetails fetches the extended driver profile.
func (g *Gateway) ProfileDetails(ctx context.Context) (domain.ProfileDetails, error) {
	var details domain.ProfileDetails
	if err := g.get(ctx, "/driver/profile-details", &details); err != nil {
		return domain.ProfileDetails{}, fmt.Errorf("gateway.ProfileDetails: %w", err)
	}
	return details, nil
}

// UpdateProfile patches the editable profile fields. Photo upload is a
// separate multipart flow outside this client.
func (g *Gateway) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) error {
	reply, err := g.t.Do(ctx, http.MethodPatch, "/driver/profile", update)
	if err != nil {
		return fmt.Errorf("gateway.UpdateProfile: %w", err)
	}
	return g.checkStatus(reply)
}

// AssignedTrips lists the driver's current trip assignments.
func (g *Gateway) AssignedTrips(ctx context.Context) ([]domain.Trip, error) {
	var resp tripListResponse[domain.Trip]
	if err := g.get(ctx, "/driver/trips", &resp); err != nil {
		return nil, fmt.Errorf("gateway.AssignedTrips: %w", err)
	}
	return resp.Trips, nil
}

// TripDetails fetches the full record for one trip.
func (g *Gateway) TripDetails(ctx context.Context, tripID int) (domain.TripDetails, error) {
	var details domain.TripDetails
	if err := g.get(ctx, fmt.Sprintf("/driver/trips/%d", tripID), &details); err != nil {
		return domain.TripDetails{}, fmt.Errorf("gateway.TripDetails: %w", err)
	}
	return details, nil
}

// CompletedTrips fetches the historical trip log.
func (g *Gateway) CompletedTrips(ctx context.Context) ([]domain.CompletedTrip, error) {
	var resp tripListResponse[domain.CompletedTrip]
	if err := g.get(ctx, "/driver/trips/completed", &resp); err != nil {
		return nil, fmt.Errorf("gateway.CompletedTrips: %w", err)
	}
	return resp.Trips, nil
}

// LegDeparture logs a leg departure.
func (g *Gateway) LegDeparture(ctx context.Context, tripID, legID int, rec domain.DepartureRecord) error {
	path := fmt.Sprintf("/driver/trips/%d/legs/%d/depart", tripID, legID)
	reply, err := g.t.Do(ctx, http.MethodPost, path, rec)
	if err != nil {
		return fmt.Errorf("gateway.LegDeparture: %w", err)
	}
	return g.checkStatus(reply)
}

// LegArrival logs a leg arrival, which also completes the leg server-side.
func (g *Gateway) LegArrival(ctx context.Context, tripID, legID int, rec domain.ArrivalRecord) error {
	path := fmt.Sprintf("/driver/trips/%d/legs/%d/arrive", tripID, legID)
	reply, err := g.t.Do(ctx, http.MethodPost, path, rec)
	if err != nil {
		return fmt.Errorf("gateway.LegArrival: %w", err)
	}
	return g.checkStatus(reply)
}

// SubmitTrip submits a fully completed shared trip. The request carries a
// deterministic Idempotency-Key derived from the trip id so a repeat of an
// already-submitted trip is a no-op success on any backend that honors
// either the key or per-trip idempotence.
func (g *Gateway) SubmitTrip(ctx context.Context, tripID int) error {
	key := uuid.NewSHA1(idempotencyNamespace, []byte(fmt.Sprintf("trip-submit-%d", tripID)))
	path := fmt.Sprintf("/driver/trips/%d/submit", tripID)
	reply, err := g.t.Do(ctx, http.MethodPost, path, nil,
		transport.WithHeader("Idempotency-Key", key.String()))
	if err != nil {
		return fmt.Errorf("gateway.SubmitTrip: %w", err)
	}
	return g.checkStatus(reply)
}

// UpdateFCMToken registers the device push token.
func (g *Gateway) UpdateFCMToken(ctx context.Context, token string) error {
	reply, err := g.t.Do(ctx, http.MethodPost, "/driver/fcm-token", map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("gateway.UpdateFCMToken: %w", err)
	}
	return g.checkStatus(reply)
}

// Logout invalidates the server-side session. Callers clear the local token
// regardless of the outcome.
func (g *Gateway) Logout(ctx context.Context) error {
	reply, err := g.t.Do(ctx, http.MethodPost, "/logout", nil)
	if err != nil {
		return fmt.Errorf("gateway.Logout: %w", err)
	}
	return g.checkStatus(reply)
}

// get issues a GET and decodes a 2xx body into out.
func (g *Gateway) get(ctx context.Context, path string, out any) error {
	reply, err := g.t.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := g.checkStatus(reply); err != nil {
		return err
	}
	return reply.Decode(out)
}

// checkStatus converts a non-2xx reply into a typed error. Known backend
// codes become named AuthErrors; 404 becomes ErrNotFound; everything else
// is a ServerError carrying the status and sanitized body.
func (g *Gateway) checkStatus(reply *transport.Reply) error {
	if reply.Status >= 200 && reply.Status < 300 {
		return nil
	}
	if reply.Status == http.StatusNotFound {
		return fmt.Errorf("gateway: %w", domain.ErrNotFound)
	}

	var body errorBody
	// The body may not be JSON at all; the ServerError fallback covers that.
	_ = json.Unmarshal(reply.Body, &body)
	code := body.Code
	if code == "" {
		code = body.Error
	}

	if kind, ok := g.matchSignal(code); ok {
		return &domain.AuthError{Kind: kind, Profile: body.User}
	}
	return &domain.ServerError{Status: reply.Status, Body: string(reply.Body)}
}

func (g *Gateway) matchSignal(code string) (domain.AuthKind, bool) {
	if code == "" {
		return "", false
	}
	for kind, codes := range map[domain.AuthKind][]string{
		domain.PendingApproval: g.signals.PendingApproval,
		domain.Declined:        g.signals.Declined,
		domain.InactiveAccount: g.signals.InactiveAccount,
		domain.NotDriver:       g.signals.NotDriver,
	} {
		for _, c := range codes {
			if c == code {
				return kind, true
			}
		}
	}
	return "", false
}
