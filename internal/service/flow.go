package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leiithegreyt/driverlog/internal/domain"
)

// TripAPI is the slice of the repository the flow controller depends on.
// Defined here, in the consumer package, so controller tests inject a mock
// without touching the network stack.
type TripAPI interface {
	LogLegDeparture(ctx context.Context, tripID, legID int, rec domain.DepartureRecord) error
	LogLegArrival(ctx context.Context, tripID, legID int, rec domain.ArrivalRecord) error
	SubmitFullSharedTrip(ctx context.Context, tripID int) error
}

// TripFlowController sequences the legs of one shared trip: it tracks the
// current leg, drives depart/arrive actions through the backend, aggregates
// totals, and submits the finished trip.
//
// At most one leg-mutating action (depart, arrive, submit) runs at a time; a
// second request while one is in flight fails with domain.ErrBusy rather
// than queueing. Read methods may be called concurrently with a pending
// write. A controller serves exactly one trip; construct a new one per trip.
type TripFlowController struct {
	api   TripAPI
	clock Clock
	log   *slog.Logger

	mu      sync.Mutex
	trip    domain.TripDetails
	legs    []domain.SharedTripLeg
	current int
	busy    bool
	closed  bool // trip submitted, no further leg actions
	torn    bool // controller torn down, in-flight results are dropped
}

// FlowOption configures a TripFlowController.
type FlowOption func(*TripFlowController)

// WithClock overrides the wall clock. Intended for tests.
func WithClock(c Clock) FlowOption {
	return func(f *TripFlowController) { f.clock = c }
}

// WithFlowLogger sets the controller's logger.
func WithFlowLogger(log *slog.Logger) FlowOption {
	return func(f *TripFlowController) { f.log = log }
}

// NewTripFlowController constructs a controller for the given trip. Legs are
// put in sequencing order; the current-leg index starts at the first leg.
func NewTripFlowController(api TripAPI, trip domain.TripDetails, opts ...FlowOption) *TripFlowController {
	legs := make([]domain.SharedTripLeg, len(trip.Legs))
	copy(legs, trip.Legs)
	domain.OrderLegs(legs)

	f := &TripFlowController{
		api:   api,
		clock: SystemClock{},
		trip:  trip,
		legs:  legs,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	return f
}

// CurrentLeg returns a copy of the current leg and its index.
func (f *TripFlowController) CurrentLeg() (domain.SharedTripLeg, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.legs) == 0 {
		return domain.SharedTripLeg{}, -1
	}
	return f.legs[f.current], f.current
}

// Legs returns a copy of the ordered leg list.
func (f *TripFlowController) Legs() []domain.SharedTripLeg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SharedTripLeg, len(f.legs))
	copy(out, f.legs)
	return out
}

// IsLastLeg reports whether the current leg is the last in the trip.
func (f *TripFlowController) IsLastLeg() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.legs) > 0 && f.current == len(f.legs)-1
}

// AdvanceToNextLeg moves the current-leg index forward by one. Permitted
// only when the current leg is completed and a next leg exists; otherwise
// it returns domain.ErrNotReady and the index stays put.
func (f *TripFlowController) AdvanceToNextLeg() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.legs) == 0 || !f.legs[f.current].Status.Terminal() {
		return fmt.Errorf("service.TripFlowController.AdvanceToNextLeg: current leg not completed: %w", domain.ErrNotReady)
	}
	if f.current == len(f.legs)-1 {
		return fmt.Errorf("service.TripFlowController.AdvanceToNextLeg: already at last leg: %w", domain.ErrNotReady)
	}
	f.current++
	return nil
}

// DepartureDefaults returns the pre-populated departure form for the current
// leg. For every leg after the first, odometer and fuel start default to the
// previous leg's end readings (chaining continuity); the operator may
// override them before confirming.
func (f *TripFlowController) DepartureDefaults() DepartureInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == 0 || len(f.legs) == 0 {
		return DepartureInput{}
	}
	return SeedDeparture(f.legs[f.current-1])
}

// DepartCurrentLeg validates and logs the departure of the current leg.
// Validation failures return before any network call. The backend call runs
// without holding the lock; its result is applied only if the controller
// still tracks the same leg and has not been closed or torn down.
func (f *TripFlowController) DepartCurrentLeg(ctx context.Context, in DepartureInput) error {
	leg, idx, err := f.beginLegAction()
	if err != nil {
		return err
	}

	updated, rec, err := DepartLeg(leg, in, f.clock.Now())
	if err != nil {
		f.release()
		return err
	}

	err = f.api.LogLegDeparture(ctx, f.tripID(), leg.LegID.Int, rec)
	return f.finishLegAction(idx, leg.LegID.Int, updated, err)
}

// CompleteCurrentLeg validates and logs the arrival of the current leg,
// completing it. Same guard discipline as DepartCurrentLeg.
func (f *TripFlowController) CompleteCurrentLeg(ctx context.Context, in ArrivalInput) error {
	leg, idx, err := f.beginLegAction()
	if err != nil {
		return err
	}

	updated, rec, err := CompleteLeg(leg, in, f.clock.Now())
	if err != nil {
		f.release()
		return err
	}

	err = f.api.LogLegArrival(ctx, f.tripID(), leg.LegID.Int, rec)
	return f.finishLegAction(idx, leg.LegID.Int, updated, err)
}

// Totals is the per-trip aggregate over completed legs.
type Totals struct {
	Distance float64 // km
	FuelUsed float64 // liters
}

// Efficiency returns km per liter and whether it is defined (fuel used > 0).
func (t Totals) Efficiency() (float64, bool) {
	if t.FuelUsed <= 0 {
		return 0, false
	}
	return t.Distance / t.FuelUsed, true
}

// EfficiencyLabel formats the efficiency for display, "—" when undefined.
func (t Totals) EfficiencyLabel() string {
	eff, ok := t.Efficiency()
	if !ok {
		return "—"
	}
	return fmt.Sprintf("%.1f km/L", eff)
}

// AggregateTotals sums distance and fuel used over all completed legs.
// Per-leg values are clamped to zero before summing, so one bad odometer
// pair can never drag the total negative.
func (f *TripFlowController) AggregateTotals() Totals {
	f.mu.Lock()
	defer f.mu.Unlock()
	var t Totals
	for _, leg := range f.legs {
		if !leg.Status.Terminal() {
			continue
		}
		t.Distance += leg.Distance()
		t.FuelUsed += leg.FuelUsed()
	}
	return t
}

// SubmitTrip submits the full shared trip. Permitted only when every leg is
// completed. On success the trip is closed: no further leg actions are
// accepted client-side. Submitting an already-closed trip is a no-op
// success, mirroring the backend's per-trip idempotence.
func (f *TripFlowController) SubmitTrip(ctx context.Context) error {
	f.mu.Lock()
	if f.torn {
		f.mu.Unlock()
		return fmt.Errorf("service.TripFlowController.SubmitTrip: %w", domain.ErrTripClosed)
	}
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	if f.busy {
		f.mu.Unlock()
		return fmt.Errorf("service.TripFlowController.SubmitTrip: %w", domain.ErrBusy)
	}
	for _, leg := range f.legs {
		if !leg.Status.Terminal() {
			f.mu.Unlock()
			return fmt.Errorf("service.TripFlowController.SubmitTrip: leg %d not completed: %w", leg.LegID.Int, domain.ErrNotReady)
		}
	}
	f.busy = true
	f.mu.Unlock()

	err := f.api.SubmitFullSharedTrip(ctx, f.tripID())

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		return err
	}
	if f.torn {
		f.log.Debug("submit result dropped, controller torn down", "trip_id", f.tripID())
		return nil
	}
	f.closed = true
	f.log.Info("trip submitted", "trip_id", f.tripID())
	return nil
}

// Close tears the controller down. In-flight requests run to completion but
// their results are dropped instead of mutating state.
func (f *TripFlowController) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torn = true
}

// tripID is stable for the controller's lifetime, safe to read unlocked.
func (f *TripFlowController) tripID() int { return f.trip.ID.Int }

// beginLegAction acquires the single-writer slot and snapshots the current
// leg. It fails fast when the trip is closed, the controller is torn down,
// there are no legs, or another mutation is already in flight.
func (f *TripFlowController) beginLegAction() (domain.SharedTripLeg, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.torn || f.closed {
		return domain.SharedTripLeg{}, 0, fmt.Errorf("service.TripFlowController: %w", domain.ErrTripClosed)
	}
	if len(f.legs) == 0 {
		return domain.SharedTripLeg{}, 0, fmt.Errorf("service.TripFlowController: trip has no legs: %w", domain.ErrNotReady)
	}
	if f.busy {
		return domain.SharedTripLeg{}, 0, fmt.Errorf("service.TripFlowController: %w", domain.ErrBusy)
	}
	f.busy = true
	return f.legs[f.current], f.current, nil
}

func (f *TripFlowController) release() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

// finishLegAction releases the writer slot and applies the updated leg,
// unless the response is stale: the controller was closed or torn down, or
// no longer tracks the leg the response belongs to.
func (f *TripFlowController) finishLegAction(idx, legID int, updated domain.SharedTripLeg, callErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if callErr != nil {
		return callErr
	}
	stale := f.torn || f.closed ||
		f.current != idx ||
		f.legs[idx].LegID.Int != legID
	if stale {
		f.log.Debug("leg action result dropped as stale", "trip_id", f.tripID(), "leg_id", legID)
		return nil
	}
	f.legs[idx] = updated
	return nil
}
