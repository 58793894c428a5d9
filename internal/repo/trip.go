// Package repo contains all backend access logic for the driver trip log.
// TripRepository orchestrates gateway calls and normalizes their results
// into domain values. No business rules live here, only call sequencing
// and type mapping. Every operation returns a value and a typed error;
// nothing panics across this boundary.
package repo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leiithegreyt/driverlog/internal/domain"
	"github.com/leiithegreyt/driverlog/internal/gateway"
)

// TripRepository is the domain-facing wrapper over the backend gateway.
// All calls except SubmitFullSharedTrip are idempotent and safe to retry at
// the caller's discretion; SubmitFullSharedTrip relies on the backend
// treating submission as idempotent by trip id.
type TripRepository struct {
	gw  *gateway.Gateway
	log *slog.Logger
}

// NewTripRepository constructs a TripRepository over the given gateway.
// A nil logger falls back to slog.Default().
func NewTripRepository(gw *gateway.Gateway, log *slog.Logger) *TripRepository {
	if log == nil {
		log = slog.Default()
	}
	return &TripRepository{gw: gw, log: log}
}

// LoginDriver exchanges credentials for a token and the user record.
func (r *TripRepository) LoginDriver(ctx context.Context, email, password string) (gateway.Credentials, error) {
	creds, err := r.gw.Login(ctx, email, password)
	if err != nil {
		return gateway.Credentials{}, fmt.Errorf("repo.TripRepository.LoginDriver: %w", err)
	}
	return creds, nil
}

// GetDriverProfile fetches the authenticated user from /me.
func (r *TripRepository) GetDriverProfile(ctx context.Context) (domain.DriverProfile, error) {
	profile, err := r.gw.Me(ctx)
	if err != nil {
		return domain.DriverProfile{}, fmt.Errorf("repo.TripRepository.GetDriverProfile: %w", err)
	}
	return profile, nil
}

// GetDriverProfileDetails fetches the extended profile record.
func (r *TripRepository) GetDriverProfileDetails(ctx context.Context) (domain.ProfileDetails, error) {
	details, err := r.gw.ProfileDetails(ctx)
	if err != nil {
		return domain.ProfileDetails{}, fmt.Errorf("repo.TripRepository.GetDriverProfileDetails: %w", err)
	}
	return details, nil
}

// UpdateDriverProfile patches the editable profile fields.
func (r *TripRepository) UpdateDriverProfile(ctx context.Context, update domain.ProfileUpdate) error {
	if err := r.gw.UpdateProfile(ctx, update); err != nil {
		return fmt.Errorf("repo.TripRepository.UpdateDriverProfile: %w", err)
	}
	return nil
}

// GetAssignedTrips lists the driver's current assignments. Always returns a
// non-nil slice so callers can safely range over it.
func (r *TripRepository) GetAssignedTrips(ctx context.Context) ([]domain.Trip, error) {
	trips, err := r.gw.AssignedTrips(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepository.GetAssignedTrips: %w", err)
	}
	if trips == nil {
		return []domain.Trip{}, nil
	}
	return trips, nil
}

// GetTripDetails fetches the full record for one trip with its legs in
// sequencing order: ascending scheduled departure when every leg has one,
// otherwise the order the backend returned.
func (r *TripRepository) GetTripDetails(ctx context.Context, tripID int) (domain.TripDetails, error) {
	details, err := r.gw.TripDetails(ctx, tripID)
	if err != nil {
		return domain.TripDetails{}, fmt.Errorf("repo.TripRepository.GetTripDetails: %w", err)
	}
	domain.OrderLegs(details.Legs)
	return details, nil
}

// GetCompletedTrips fetches the historical trip log. Always returns a
// non-nil slice.
func (r *TripRepository) GetCompletedTrips(ctx context.Context) ([]domain.CompletedTrip, error) {
	trips, err := r.gw.CompletedTrips(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepository.GetCompletedTrips: %w", err)
	}
	if trips == nil {
		return []domain.CompletedTrip{}, nil
	}
	return trips, nil
}

// LogLegDeparture records a leg departure with the backend.
func (r *TripRepository) LogLegDeparture(ctx context.Context, tripID, legID int, rec domain.DepartureRecord) error {
	if err := r.gw.LegDeparture(ctx, tripID, legID, rec); err != nil {
		return fmt.Errorf("repo.TripRepository.LogLegDeparture: %w", err)
	}
	return nil
}

// LogLegArrival records a leg arrival. The backend completes the leg as
// part of the same action; there is no separate completion call.
func (r *TripRepository) LogLegArrival(ctx context.Context, tripID, legID int, rec domain.ArrivalRecord) error {
	if err := r.gw.LegArrival(ctx, tripID, legID, rec); err != nil {
		return fmt.Errorf("repo.TripRepository.LogLegArrival: %w", err)
	}
	return nil
}

// CompleteLeg is the completion-flavored name for LogLegArrival: arrival and
// completion are one backend action on /arrive.
func (r *TripRepository) CompleteLeg(ctx context.Context, tripID, legID int, rec domain.ArrivalRecord) error {
	return r.LogLegArrival(ctx, tripID, legID, rec)
}

// SubmitFullSharedTrip submits a completed shared trip. Repeated submission
// of an already-submitted trip is a no-op success by contract with the
// backend.
func (r *TripRepository) SubmitFullSharedTrip(ctx context.Context, tripID int) error {
	if err := r.gw.SubmitTrip(ctx, tripID); err != nil {
		return fmt.Errorf("repo.TripRepository.SubmitFullSharedTrip: %w", err)
	}
	return nil
}

// UpdateFCMToken registers the device push token. Fire-and-forget: failures
// are logged at debug level and never surfaced.
func (r *TripRepository) UpdateFCMToken(ctx context.Context, token string) {
	if err := r.gw.UpdateFCMToken(ctx, token); err != nil {
		r.log.Debug("fcm token update failed", "error", err)
	}
}

// Logout asks the backend to drop the server-side session. Best effort: the
// caller clears the local token regardless of the outcome.
func (r *TripRepository) Logout(ctx context.Context) error {
	if err := r.gw.Logout(ctx); err != nil {
		return fmt.Errorf("repo.TripRepository.Logout: %w", err)
	}
	return nil
}
