package stub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leiithegreyt/driverlog/internal/domain"
	"github.com/leiithegreyt/driverlog/internal/middleware"
)

// errorResponse is the backend's error body shape. Code is what the client's
// signal table matches on.
type errorResponse struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	User    *domain.DriverProfile `json:"user,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "malformed login body")
		return
	}

	s.mu.Lock()
	driver, ok := s.drivers[req.Email]
	s.mu.Unlock()
	if !ok || driver.password != req.Password {
		s.writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password incorrect")
		return
	}

	token, err := middleware.SignToken(s.secret, driver.profile.ID.Int, driver.profile.Email)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", "token signing failed")
		return
	}

	// Approval routing happens client-side from /me; login succeeds for any
	// known credentials so the pending/declined screens can show the profile.
	s.writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"user":         driver.profile.DriverProfile,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	driver, ok := s.driverFromContext(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized", "unknown account")
		return
	}
	s.writeJSON(w, http.StatusOK, driver.profile.DriverProfile)
}

func (s *Server) handleProfileDetails(w http.ResponseWriter, r *http.Request) {
	driver, ok := s.driverFromContext(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized", "unknown account")
		return
	}
	s.writeJSON(w, http.StatusOK, driver.profile)
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	var update domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "malformed profile body")
		return
	}

	claims := middleware.GetClaims(r.Context())
	s.mu.Lock()
	driver, ok := s.drivers[claims.Email]
	if ok {
		if update.Name != "" {
			driver.profile.Name = update.Name
		}
		if update.Phone != "" {
			driver.profile.Phone = update.Phone
		}
		if update.LicenseNumber != "" {
			driver.profile.LicenseNumber = update.LicenseNumber
		}
	}
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized", "unknown account")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "profile updated"})
}

func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	trips := make([]json.RawMessage, 0, len(s.trips))
	for _, t := range s.trips {
		if t.submitted {
			continue
		}
		trips = append(trips, encodeTripSummary(t.details))
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "assigned trips",
		"count":   len(trips),
		"trips":   trips,
	})
}

// encodeTripSummary emits the trip list entry the way the production backend
// does: shared trips carry their raw string id ("shared_2") so clients must
// coerce, and is_shared_trip is an integer flag.
func encodeTripSummary(d domain.TripDetails) json.RawMessage {
	id := any(d.ID.Int)
	if d.ID.Raw != "" {
		id = d.ID.Raw
	}
	shared := 0
	if d.IsShared() {
		shared = 1
	}
	raw, _ := json.Marshal(map[string]any{
		"id":             id,
		"destination":    d.Destination,
		"purpose":        d.Purpose,
		"travel_date":    d.TravelDate,
		"travel_time":    d.TravelTime,
		"status":         d.Status,
		"trip_type":      d.TripType,
		"is_shared_trip": shared,
	})
	return raw
}

func (s *Server) handleTripDetails(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.lookupTrip(chi.URLParam(r, "tripID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "trip not found")
		return
	}
	// Copy the legs under the lock: the returned struct would otherwise
	// share its slice backing array with state the depart/arrive handlers
	// mutate, and writeJSON marshals outside the lock.
	s.mu.Lock()
	details := trip.details
	details.Legs = append([]domain.SharedTripLeg(nil), trip.details.Legs...)
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleCompletedTrips(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	completed := make([]domain.CompletedTrip, 0)
	for _, t := range s.trips {
		if !t.submitted {
			continue
		}
		var c domain.CompletedTrip
		c.ID = t.details.ID
		c.Destination = t.details.Destination
		c.Purpose = t.details.Purpose
		c.TravelDate = t.details.TravelDate
		for _, leg := range t.details.Legs {
			c.TotalDistance += domain.FlexFloat(leg.Distance())
			c.TotalFuelUsed += domain.FlexFloat(leg.FuelUsed())
			c.Stops = append(c.Stops, domain.CompletedStop{
				Destination: leg.Destination,
				ArrivalTime: leg.ArrivalTime,
			})
		}
		completed = append(completed, c)
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "completed trips",
		"count":   len(completed),
		"trips":   completed,
	})
}

func (s *Server) handleDepart(w http.ResponseWriter, r *http.Request) {
	var rec domain.DepartureRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "malformed departure body")
		return
	}

	s.withLeg(w, r, func(leg *domain.SharedTripLeg) (int, string, string) {
		if !leg.Status.CanDepart() {
			return http.StatusConflict, "invalid_state", fmt.Sprintf("leg is %s", leg.Status)
		}
		leg.Status = domain.LegInProgress
		leg.OdometerStart = domain.FlexFloat(rec.OdometerStart)
		leg.FuelStart = domain.FlexFloat(rec.FuelStart)
		leg.ConfirmedPassengers = rec.Passengers
		leg.DepartureLocation = rec.DepartureLocation
		leg.DepartureTime = rec.DepartureTime
		leg.OverrideReason = rec.OverrideReason
		return http.StatusOK, "", "leg departed"
	})
}

func (s *Server) handleArrive(w http.ResponseWriter, r *http.Request) {
	var rec domain.ArrivalRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "malformed arrival body")
		return
	}

	s.withLeg(w, r, func(leg *domain.SharedTripLeg) (int, string, string) {
		if leg.Status != domain.LegInProgress {
			return http.StatusConflict, "invalid_state", fmt.Sprintf("leg is %s", leg.Status)
		}
		leg.Status = domain.LegCompleted
		leg.OdometerEnd = domain.FlexFloat(rec.OdometerEnd)
		leg.FuelEnd = domain.FlexFloat(rec.FuelEnd)
		leg.FuelPurchased = domain.FlexFloat(rec.FuelPurchased)
		leg.ArrivalLocation = rec.ArrivalLocation
		leg.ArrivalTime = rec.ArrivalTime
		leg.Notes = rec.Notes
		leg.Return = rec.Return
		return http.StatusOK, "", "leg completed"
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.lookupTrip(chi.URLParam(r, "tripID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "trip not found")
		return
	}

	s.mu.Lock()
	s.submissions[trip.details.ID.Int]++
	if trip.submitted {
		// Idempotent by trip id: a repeat submission is a no-op success.
		s.mu.Unlock()
		s.writeJSON(w, http.StatusOK, map[string]string{"message": "trip already submitted"})
		return
	}
	for _, leg := range trip.details.Legs {
		if !leg.Status.Terminal() {
			s.mu.Unlock()
			s.writeError(w, http.StatusConflict, "invalid_state",
				fmt.Sprintf("leg %d is not completed", leg.LegID.Int))
			return
		}
	}
	trip.submitted = true
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message":   "trip submitted",
		"reference": uuid.NewString(),
	})
}

func (s *Server) handleFCMToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "malformed token body")
		return
	}
	claims := middleware.GetClaims(r.Context())
	s.mu.Lock()
	s.fcmTokens[claims.DriverID] = req.Token
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "token updated"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 {
		s.mu.Lock()
		s.revoked[auth[7:]] = true
		s.mu.Unlock()
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ---- helpers ---------------------------------------------------------------

func (s *Server) driverFromContext(r *http.Request) (*driverState, bool) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	driver, ok := s.drivers[claims.Email]
	return driver, ok
}

func (s *Server) lookupTrip(rawID string) (*tripState, bool) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	trip, ok := s.trips[id]
	return trip, ok
}

// withLeg resolves the trip and leg from the URL, applies fn under the lock,
// and writes the outcome. fn returns (status, error code, message); an empty
// code means success.
func (s *Server) withLeg(w http.ResponseWriter, r *http.Request, fn func(*domain.SharedTripLeg) (int, string, string)) {
	trip, ok := s.lookupTrip(chi.URLParam(r, "tripID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "trip not found")
		return
	}
	legID, err := strconv.Atoi(chi.URLParam(r, "legID"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "not_found", "leg not found")
		return
	}

	s.mu.Lock()
	var leg *domain.SharedTripLeg
	for i := range trip.details.Legs {
		if trip.details.Legs[i].LegID.Int == legID {
			leg = &trip.details.Legs[i]
			break
		}
	}
	if leg == nil {
		s.mu.Unlock()
		s.writeError(w, http.StatusNotFound, "not_found", "leg not found")
		return
	}
	status, code, msg := fn(leg)
	s.mu.Unlock()

	if code != "" {
		s.writeError(w, status, code, msg)
		return
	}
	s.writeJSON(w, status, map[string]string{"message": msg})
}

// writeJSON writes v as the response body, prepending the configured noise
// to emulate a backend that leaks debug output before its JSON.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if s.noise != "" {
		_, _ = w.Write([]byte(s.noise))
	}
	_, _ = w.Write(raw)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
