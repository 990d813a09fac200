package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
	"github.com/iliyamo/trip-seat-booking/internal/client"
	"github.com/iliyamo/trip-seat-booking/internal/model"
)

func need(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: seatctl %s", usage)
	}
	return nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	if err := need(args, 4, "signup EMAIL PASSWORD NAME GENDER"); err != nil {
		return err
	}
	p, err := a.client.Register(ctx, client.RegisterInput{
		Email: args[0], Password: args[1], Name: args[2], Gender: args[3],
	})
	if err != nil {
		return err
	}
	fmt.Printf("account %s created for %s; sign in with: seatctl login %s PASSWORD\n", p.ID, p.Email, p.Email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	if err := need(args, 2, "login EMAIL PASSWORD"); err != nil {
		return err
	}
	p, err := a.client.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	a.save()
	fmt.Printf("signed in as %s (%s)\n", p.Name, p.Gender)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	fmt.Println("signed out")
	return err
}

func (a *app) whoami() error {
	u := a.client.Session.User()
	if u == nil {
		return client.ErrNotSignedIn
	}
	fmt.Printf("%s <%s> %s id=%s\n", u.Name, u.Email, u.Gender, u.ID)
	return nil
}

func (a *app) seats(ctx context.Context) error {
	seats, err := a.client.Seats(ctx)
	if err != nil {
		return err
	}
	printSeatMap(os.Stdout, seats)
	return nil
}

func (a *app) watch(ctx context.Context) error {
	err := a.client.Watch(ctx, func(s client.Snapshot) error {
		fmt.Printf("\n#%d at %s\n", s.Seq, s.At.Local().Format(time.TimeOnly))
		printSeatMap(os.Stdout, s.Seats)
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// resolveSeat accepts a seat id or a seat number such as "2-3".
func (a *app) resolveSeat(ctx context.Context, ref string) (client.Seat, error) {
	seats, err := a.client.Seats(ctx)
	if err != nil {
		return client.Seat{}, err
	}
	for _, s := range seats {
		if s.ID == ref || s.Number == ref {
			return s, nil
		}
	}
	return client.Seat{}, fmt.Errorf("%w: %s", booking.ErrSeatNotFound, ref)
}

func (a *app) lock(ctx context.Context, args []string) error {
	if err := need(args, 1, "lock SEAT [--hold]"); err != nil {
		return err
	}
	seat, err := a.resolveSeat(ctx, args[0])
	if err != nil {
		return err
	}
	l, err := a.client.Lock(ctx, seat.ID)
	if err != nil {
		return explain(err)
	}
	// The countdown runs on the local clock from the server's remaining time.
	deadline := time.Now().Add(time.Duration(l.RemainingMs) * time.Millisecond)
	fmt.Printf("seat %s locked until %s (%s left)\n", seat.Number, l.ExpiresAt.Local().Format(time.TimeOnly), l.Countdown)
	if !a.hold {
		return nil
	}
	return a.holdLock(ctx, seat, deadline)
}

// holdLock shows the countdown until the user confirms (c), cancels (x) or
// time runs out.  At zero the lock is released on a best-effort basis; the
// server reclaims it regardless.
func (a *app) holdLock(ctx context.Context, seat client.Seat, deadline time.Time) error {
	input := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			input <- strings.ToLower(strings.TrimSpace(sc.Text()))
		}
		close(input)
	}()
	fmt.Println("type c + Enter to confirm, x + Enter to cancel")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		now := time.Now()
		warn := ""
		if booking.CountdownWarning(deadline, now) {
			warn = "  hurry!"
		}
		fmt.Printf("\r%s left%s   ", booking.FormatCountdown(deadline, now), warn)
		if booking.Remaining(deadline, now) == 0 {
			fmt.Println()
			a.releaseQuietly(seat)
			return fmt.Errorf("seat %s: %w", seat.Number, booking.ErrLockExpired)
		}

		select {
		case <-ctx.Done():
			fmt.Println()
			a.releaseQuietly(seat)
			return nil
		case cmd, ok := <-input:
			if !ok {
				input = nil
				continue
			}
			switch cmd {
			case "c":
				fmt.Println()
				b, err := a.client.Confirm(ctx, seat.ID)
				if err != nil {
					return explain(err)
				}
				printBooking(b, seat.Number)
				return nil
			case "x":
				fmt.Println()
				if _, err := a.client.Cancel(ctx, seat.ID); err != nil {
					return explain(err)
				}
				fmt.Printf("seat %s released\n", seat.Number)
				return nil
			}
		case <-ticker.C:
		}
	}
}

func (a *app) releaseQuietly(seat client.Seat) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.client.Cancel(ctx, seat.ID)
	switch {
	case err == nil:
		fmt.Printf("seat %s released\n", seat.Number)
	case errors.Is(err, booking.ErrNotLockHolder), errors.Is(err, booking.ErrSeatUnavailable):
		// already reclaimed
	default:
		logrus.WithError(err).Debug("release after countdown failed")
	}
}

func (a *app) cancel(ctx context.Context, args []string) error {
	if err := need(args, 1, "cancel SEAT"); err != nil {
		return err
	}
	seat, err := a.resolveSeat(ctx, args[0])
	if err != nil {
		return err
	}
	if _, err := a.client.Cancel(ctx, seat.ID); err != nil {
		return explain(err)
	}
	fmt.Printf("seat %s released\n", seat.Number)
	return nil
}

func (a *app) confirm(ctx context.Context, args []string) error {
	if err := need(args, 1, "confirm SEAT"); err != nil {
		return err
	}
	seat, err := a.resolveSeat(ctx, args[0])
	if err != nil {
		return err
	}
	b, err := a.client.Confirm(ctx, seat.ID)
	if err != nil {
		return explain(err)
	}
	printBooking(b, seat.Number)
	return nil
}

func (a *app) booking(ctx context.Context, args []string) error {
	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	b, err := a.client.BookingOrLatest(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return errors.New("you have no bookings yet")
		}
		return err
	}
	number := b.SeatID
	if seats, err := a.client.Seats(ctx); err == nil {
		for _, s := range seats {
			if s.ID == b.SeatID {
				number = s.Number
			}
		}
	}
	printBooking(b, number)
	return nil
}

// explain turns booking outcomes into user-facing errors.
func explain(err error) error {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, booking.ErrComplianceViolation) && errors.As(err, &apiErr):
		switch apiErr.Reason {
		case "gender_mismatch":
			return errors.New("this seat is reserved for the other gender")
		case "adjacent_conflict":
			return errors.New("this seat is next to a booked seat reserved for the other gender")
		}
	case errors.Is(err, booking.ErrSeatUnavailable):
		return errors.New("seat is no longer available, refresh the seat map and pick another")
	case errors.Is(err, booking.ErrLockExpired):
		return errors.New("your lock has expired, lock the seat again")
	case errors.Is(err, booking.ErrNotLockHolder):
		return errors.New("you do not hold the lock on this seat")
	case errors.Is(err, booking.ErrStoreUnavailable):
		return errors.New("service temporarily unavailable, try again")
	}
	return err
}

func printBooking(b model.Booking, seatNumber string) {
	fmt.Printf("booking %s\n  seat:      %s\n  confirmed: %s\n",
		b.ID, seatNumber, b.ConfirmedAt.Local().Format(time.DateTime))
	if b.Recovered {
		fmt.Println("  (recorded by reconciliation)")
	}
}
