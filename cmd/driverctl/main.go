// Package main implements driverctl, a command-line driver client for the
// trip log backend. It owns the decisions the core leaves to the caller:
// which base URL to talk to, where the token file lives, and whether to
// retry transient transport failures.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/leiithegreyt/driverlog/internal/config"
	"github.com/leiithegreyt/driverlog/internal/domain"
	"github.com/leiithegreyt/driverlog/internal/gateway"
	"github.com/leiithegreyt/driverlog/internal/repo"
	"github.com/leiithegreyt/driverlog/internal/service"
	"github.com/leiithegreyt/driverlog/internal/session"
	"github.com/leiithegreyt/driverlog/internal/transport"
)

const usage = `usage: driverctl <command> [flags]

commands:
  login    -email X -password X   authenticate and store the token
  logout                          clear the session
  profile                         show the driver profile
  trips                           list assigned trips
  trip     -id N                  show one trip with its legs
  depart   -trip N -odometer X -fuel X -passengers "A,B" [-location X] [-override X]
  arrive   -trip N -odometer X -fuel X [-purchased X] [-location X] [-notes X]
  submit   -trip N                submit a fully completed shared trip
  history                         list completed trips
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	app, err := wire(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	session *session.Manager
	trips   *repo.TripRepository
}

// wire builds the client stack: secret store -> session manager -> transport
// -> gateway -> repository, then binds the repository back into the manager.
func wire(cfg config.Client, logger *slog.Logger) (*app, error) {
	store := session.NewFileStore(cfg.TokenFile)
	mgr, err := session.NewManager(store, logger)
	if err != nil {
		return nil, err
	}
	mgr.OnAuthLost(func() {
		fmt.Fprintln(os.Stderr, "session expired; please log in again")
	})

	client, err := transport.New(cfg.APIBaseURL,
		transport.WithTokenSource(mgr),
		transport.WithTimeout(cfg.HTTPTimeout),
		transport.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	trips := repo.NewTripRepository(gateway.New(client, gateway.WithLogger(logger)), logger)
	mgr.Bind(trips)
	return &app{session: mgr, trips: trips}, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.session.Logout(ctx)
		fmt.Println("logged out")
		return nil
	case "profile":
		return a.profile(ctx)
	case "trips":
		return a.listTrips(ctx)
	case "trip":
		return a.showTrip(ctx, args)
	case "depart":
		return a.depart(ctx, args)
	case "arrive":
		return a.arrive(ctx, args)
	case "submit":
		return a.submit(ctx, args)
	case "history":
		return a.history(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "driver email")
	password := fs.String("password", "", "driver password")
	_ = fs.Parse(args)

	profile, err := a.session.Login(ctx, *email, *password)
	if err != nil {
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			return fmt.Errorf("login refused: %s", authErr.Kind)
		}
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", profile.Name, profile.Email)
	return nil
}

func (a *app) profile(ctx context.Context) error {
	var details domain.ProfileDetails
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		details, err = a.trips.GetDriverProfileDetails(ctx)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\nphone: %s\nlicense: %s\nstatus: %s\n",
		details.Name, details.Email, details.Phone, details.LicenseNumber, details.ApprovalStatus)
	return nil
}

func (a *app) listTrips(ctx context.Context) error {
	var trips []domain.Trip
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		trips, err = a.trips.GetAssignedTrips(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if len(trips) == 0 {
		fmt.Println("no assigned trips")
		return nil
	}
	for _, t := range trips {
		kind := "individual"
		if t.IsShared() {
			kind = "shared"
		}
		fmt.Printf("#%d  %s  %s  %s %s\n", t.ID.Int, kind, t.Destination, t.TravelDate, t.TravelTime)
	}
	return nil
}

func (a *app) showTrip(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trip", flag.ExitOnError)
	id := fs.Int("id", 0, "trip id")
	_ = fs.Parse(args)

	details, err := a.trips.GetTripDetails(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("trip #%d  %s  vehicle %s\n", details.ID.Int, details.TravelDate, details.Vehicle.PlateNumber)
	for i, leg := range details.Legs {
		fmt.Printf("  leg %d [%s] -> %s  passengers: %s\n",
			i+1, leg.Status, leg.Destination, strings.Join(leg.Passengers, ", "))
	}
	return nil
}

func (a *app) depart(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("depart", flag.ExitOnError)
	tripID := fs.Int("trip", 0, "trip id")
	odometer := fs.String("odometer", "", "odometer start reading (km)")
	fuel := fs.String("fuel", "", "fuel start reading (liters)")
	passengers := fs.String("passengers", "", "comma-separated confirmed passengers")
	location := fs.String("location", "", "departure location (default Base)")
	override := fs.String("override", "", "manifest override reason")
	_ = fs.Parse(args)

	flow, err := a.currentFlow(ctx, *tripID)
	if err != nil {
		return err
	}
	in := flow.DepartureDefaults()
	if *odometer != "" {
		in.OdometerStart = *odometer
	}
	if *fuel != "" {
		in.FuelStart = *fuel
	}
	in.ConfirmedPassengers = splitNames(*passengers)
	in.DepartureLocation = *location
	in.OverrideReason = *override

	if err := flow.DepartCurrentLeg(ctx, in); err != nil {
		return err
	}
	leg, n := flow.CurrentLeg()
	fmt.Printf("leg %d to %s departed\n", n+1, leg.Destination)
	return nil
}

func (a *app) arrive(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("arrive", flag.ExitOnError)
	tripID := fs.Int("trip", 0, "trip id")
	odometer := fs.String("odometer", "", "odometer end reading (km)")
	fuel := fs.String("fuel", "", "fuel end reading (liters)")
	purchased := fs.String("purchased", "", "fuel purchased en route (liters)")
	location := fs.String("location", "", "arrival location (default planned destination)")
	notes := fs.String("notes", "", "free-text notes")
	_ = fs.Parse(args)

	flow, err := a.currentFlow(ctx, *tripID)
	if err != nil {
		return err
	}
	err = flow.CompleteCurrentLeg(ctx, service.ArrivalInput{
		OdometerEnd:     *odometer,
		FuelEnd:         *fuel,
		FuelPurchased:   *purchased,
		ArrivalLocation: *location,
		Notes:           *notes,
	})
	if err != nil {
		return err
	}
	totals := flow.AggregateTotals()
	fmt.Printf("leg completed; trip so far: %.1f km, %.1f L used, efficiency %s\n",
		totals.Distance, totals.FuelUsed, totals.EfficiencyLabel())
	return nil
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	tripID := fs.Int("trip", 0, "trip id")
	_ = fs.Parse(args)

	flow, err := a.currentFlow(ctx, *tripID)
	if err != nil {
		return err
	}
	if err := flow.SubmitTrip(ctx); err != nil {
		return err
	}
	totals := flow.AggregateTotals()
	fmt.Printf("trip submitted: %.1f km, %.1f L used, efficiency %s\n",
		totals.Distance, totals.FuelUsed, totals.EfficiencyLabel())
	return nil
}

func (a *app) history(ctx context.Context) error {
	var trips []domain.CompletedTrip
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		trips, err = a.trips.GetCompletedTrips(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if len(trips) == 0 {
		fmt.Println("no completed trips")
		return nil
	}
	for _, t := range trips {
		fmt.Printf("#%d  %s  %.1f km  %.1f L\n",
			t.ID.Int, t.TravelDate, float64(t.TotalDistance), float64(t.TotalFuelUsed))
	}
	return nil
}

// currentFlow loads a trip and positions a flow controller on its first
// actionable leg. driverctl is stateless between invocations, so the
// controller is rebuilt per command from the backend's view of the trip.
func (a *app) currentFlow(ctx context.Context, tripID int) (*service.TripFlowController, error) {
	if tripID == 0 {
		return nil, fmt.Errorf("-trip is required")
	}
	details, err := a.trips.GetTripDetails(ctx, tripID)
	if err != nil {
		return nil, err
	}
	flow := service.NewTripFlowController(a.trips, details)
	for {
		leg, _ := flow.CurrentLeg()
		if !leg.Status.Terminal() || flow.IsLastLeg() {
			return flow, nil
		}
		if err := flow.AdvanceToNextLeg(); err != nil {
			return flow, nil
		}
	}
}

// withRetry retries read-only calls on transient transport failures. Writes
// are never retried here; the backend and controller own their idempotence.
func withRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		var terr *domain.TransportError
		if errors.As(err, &terr) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
