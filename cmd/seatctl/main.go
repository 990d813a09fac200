// seatctl is a command line client for the booking API.
//
// Usage:
//
//	seatctl [--server URL] [--state FILE] <command> [args]
//
// Commands:
//
//	signup EMAIL PASSWORD NAME GENDER   create an account (leaves you signed out)
//	login EMAIL PASSWORD                sign in and save the session
//	logout                              revoke the saved session
//	whoami                              show the signed-in profile
//	seats                               print the seat map
//	watch                               print the seat map on every change
//	lock SEAT [--hold]                  lock a seat; --hold runs the countdown
//	cancel SEAT                         release your lock
//	confirm SEAT                        book your locked seat
//	booking [ID]                        show a booking, or your latest one
//
// SEAT is a seat id or its number, for example 1-2.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/iliyamo/trip-seat-booking/internal/client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	client    *client.Client
	statePath string
	hold      bool
}

func run() error {
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logrus.SetOutput(os.Stderr)

	server := os.Getenv("SEATCTL_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}

	flags := pflag.NewFlagSet("seatctl", pflag.ContinueOnError)
	flags.StringVar(&server, "server", server, "API base URL")
	statePath := flags.String("state", defaultStatePath(), "file holding the saved session")
	hold := flags.Bool("hold", false, "lock: keep running with a countdown, c=confirm x=cancel")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	flags.SetInterspersed(true)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	args := flags.Args()
	if len(args) == 0 {
		flags.PrintDefaults()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{client: client.New(server, nil), statePath: *statePath, hold: *hold}
	return a.dispatch(ctx, args[0], args[1:])
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".seatctl-session.json"
	}
	return filepath.Join(dir, "seatctl", "session.json")
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args)
	}

	if err := a.resume(ctx); err != nil {
		return err
	}
	defer a.save()

	switch cmd {
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "seats":
		return a.seats(ctx)
	case "watch":
		return a.watch(ctx)
	case "lock":
		return a.lock(ctx, args)
	case "cancel":
		return a.cancel(ctx, args)
	case "confirm":
		return a.confirm(ctx, args)
	case "booking":
		return a.booking(ctx, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}
