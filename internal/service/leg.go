// Package service contains the trip execution business logic: the pure leg
// state machine and the flow controller that sequences a shared trip's legs.
// Services validate inputs and enforce transition rules; network calls go
// through interfaces so everything here unit-tests without a backend.
package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leiithegreyt/driverlog/internal/domain"
)

// DefaultDepartureLocation is used when the operator leaves the departure
// location blank.
const DefaultDepartureLocation = "Base"

// DepartureInput carries the operator-entered values for departing a leg.
// Odometer and fuel are raw strings straight from the form; parsing is a
// validation step, not the UI's problem.
type DepartureInput struct {
	OdometerStart       string
	FuelStart           string
	ConfirmedPassengers []string
	DepartureLocation   string
	OverrideReason      string
}

// ArrivalInput carries the operator-entered values for arriving a leg,
// which also completes it.
type ArrivalInput struct {
	OdometerEnd       string
	FuelEnd           string
	FuelPurchased     string // optional, blank means none
	DroppedPassengers []string
	ArrivalLocation   string
	Notes             string
	Return            *ReturnInput
}

// ReturnInput is the optional return-to-base journey recorded with the final
// leg's arrival.
type ReturnInput struct {
	OdometerStart     string
	OdometerEnd       string
	FuelStart         string
	FuelEnd           string
	DepartureLocation string
	DepartureTime     string
	ArrivalLocation   string
	ArrivalTime       string
}

// DepartLeg validates a depart action against the leg's current state and,
// when legal, returns the updated leg (now in progress) and the wire record
// to send to the backend. The input leg is not mutated.
//
// Preconditions: status Pending or Approved; parseable odometer and fuel
// readings; a non-empty confirmed-passenger subset of the assigned manifest.
func DepartLeg(leg domain.SharedTripLeg, in DepartureInput, now time.Time) (domain.SharedTripLeg, domain.DepartureRecord, error) {
	if leg.Status.Terminal() {
		return leg, domain.DepartureRecord{}, fmt.Errorf("service.DepartLeg: %w", domain.ErrLegCompleted)
	}
	if !leg.Status.CanDepart() {
		return leg, domain.DepartureRecord{}, fmt.Errorf("service.DepartLeg: status %q: %w", leg.Status, domain.ErrNotReady)
	}

	odometer, err := parseReading("odometer start", in.OdometerStart)
	if err != nil {
		return leg, domain.DepartureRecord{}, err
	}
	fuel, err := parseReading("fuel start", in.FuelStart)
	if err != nil {
		return leg, domain.DepartureRecord{}, err
	}

	confirmed, err := confirmManifest(leg.Passengers, in.ConfirmedPassengers)
	if err != nil {
		return leg, domain.DepartureRecord{}, err
	}

	location := strings.TrimSpace(in.DepartureLocation)
	if location == "" {
		location = DefaultDepartureLocation
	}

	rec := domain.DepartureRecord{
		OdometerStart:     odometer,
		FuelStart:         fuel,
		Passengers:        confirmed,
		DepartureTime:     now.Format(WireTimeFormat),
		DepartureLocation: location,
		OverrideReason:    strings.TrimSpace(in.OverrideReason),
	}

	leg.Status = domain.LegInProgress
	leg.OdometerStart = domain.FlexFloat(odometer)
	leg.FuelStart = domain.FlexFloat(fuel)
	leg.ConfirmedPassengers = confirmed
	leg.DepartureLocation = location
	leg.DepartureTime = rec.DepartureTime
	leg.OverrideReason = rec.OverrideReason
	return leg, rec, nil
}

// CompleteLeg validates an arrive action and, when legal, returns the
// completed leg and the wire record. fuel_used is computed here per the
// fuel balance (start + purchased - end) clamped to zero; an odometer pair
// with end < start is accepted and yields distance 0.
func CompleteLeg(leg domain.SharedTripLeg, in ArrivalInput, now time.Time) (domain.SharedTripLeg, domain.ArrivalRecord, error) {
	if leg.Status.Terminal() {
		return leg, domain.ArrivalRecord{}, fmt.Errorf("service.CompleteLeg: %w", domain.ErrLegCompleted)
	}
	if leg.Status != domain.LegInProgress {
		return leg, domain.ArrivalRecord{}, fmt.Errorf("service.CompleteLeg: status %q: %w", leg.Status, domain.ErrNotReady)
	}

	odometer, err := parseReading("odometer end", in.OdometerEnd)
	if err != nil {
		return leg, domain.ArrivalRecord{}, err
	}
	fuel, err := parseReading("fuel end", in.FuelEnd)
	if err != nil {
		return leg, domain.ArrivalRecord{}, err
	}
	purchased := 0.0
	if strings.TrimSpace(in.FuelPurchased) != "" {
		purchased, err = parseReading("fuel purchased", in.FuelPurchased)
		if err != nil {
			return leg, domain.ArrivalRecord{}, err
		}
	}

	dropped := in.DroppedPassengers
	if len(dropped) == 0 {
		// Everyone on board gets off at the destination unless told otherwise.
		dropped = leg.ConfirmedPassengers
	}

	location := strings.TrimSpace(in.ArrivalLocation)
	if location == "" {
		location = leg.Destination
	}

	leg.OdometerEnd = domain.FlexFloat(odometer)
	leg.FuelEnd = domain.FlexFloat(fuel)
	leg.FuelPurchased = domain.FlexFloat(purchased)

	rec := domain.ArrivalRecord{
		OdometerEnd:       odometer,
		FuelEnd:           fuel,
		FuelUsed:          leg.FuelUsed(),
		FuelPurchased:     purchased,
		PassengersDropped: dropped,
		ArrivalTime:       now.Format(WireTimeFormat),
		ArrivalLocation:   location,
		Notes:             strings.TrimSpace(in.Notes),
	}

	if in.Return != nil {
		ret, err := buildReturn(*in.Return)
		if err != nil {
			return leg, domain.ArrivalRecord{}, err
		}
		rec.Return = ret
		leg.Return = ret
	}

	leg.Status = domain.LegCompleted
	leg.ArrivalLocation = location
	leg.ArrivalTime = rec.ArrivalTime
	leg.Notes = rec.Notes
	return leg, rec, nil
}

// SeedDeparture returns the departure defaults for a leg that follows prev:
// its odometer and fuel start where the previous leg ended. The operator can
// still override them before confirming.
func SeedDeparture(prev domain.SharedTripLeg) DepartureInput {
	if !prev.Status.Terminal() {
		return DepartureInput{}
	}
	return DepartureInput{
		OdometerStart: formatReading(float64(prev.OdometerEnd)),
		FuelStart:     formatReading(float64(prev.FuelEnd)),
	}
}

// confirmManifest checks the confirmed set is non-empty and a subset of the
// assigned manifest, preserving assignment order in the result.
func confirmManifest(assigned domain.PassengerList, confirmed []string) ([]string, error) {
	clean := make(map[string]struct{}, len(confirmed))
	for _, name := range confirmed {
		if t := strings.TrimSpace(name); t != "" {
			clean[t] = struct{}{}
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("%w: at least one passenger must be confirmed", domain.ErrValidation)
	}

	onBoard := make([]string, 0, len(clean))
	for _, name := range assigned {
		if _, ok := clean[name]; ok {
			onBoard = append(onBoard, name)
			delete(clean, name)
		}
	}
	if len(clean) > 0 {
		return nil, fmt.Errorf("%w: confirmed passengers must be assigned to this leg", domain.ErrValidation)
	}
	return onBoard, nil
}

func buildReturn(in ReturnInput) (*domain.ReturnJourney, error) {
	odoStart, err := parseReading("return odometer start", in.OdometerStart)
	if err != nil {
		return nil, err
	}
	odoEnd, err := parseReading("return odometer end", in.OdometerEnd)
	if err != nil {
		return nil, err
	}
	fuelStart, err := parseReading("return fuel start", in.FuelStart)
	if err != nil {
		return nil, err
	}
	fuelEnd, err := parseReading("return fuel end", in.FuelEnd)
	if err != nil {
		return nil, err
	}
	return &domain.ReturnJourney{
		OdometerStart:     domain.FlexFloat(odoStart),
		OdometerEnd:       domain.FlexFloat(odoEnd),
		FuelStart:         domain.FlexFloat(fuelStart),
		FuelEnd:           domain.FlexFloat(fuelEnd),
		DepartureLocation: strings.TrimSpace(in.DepartureLocation),
		DepartureTime:     strings.TrimSpace(in.DepartureTime),
		ArrivalLocation:   strings.TrimSpace(in.ArrivalLocation),
		ArrivalTime:       strings.TrimSpace(in.ArrivalTime),
	}, nil
}

// parseReading parses an operator-entered numeric field, rejecting blanks
// and non-numbers with a ValidationError naming the field.
func parseReading(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a number", domain.ErrValidation, field)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", domain.ErrValidation, field)
	}
	return v, nil
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
