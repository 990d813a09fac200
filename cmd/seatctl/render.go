package main

import (
	"fmt"
	"io"

	"github.com/iliyamo/trip-seat-booking/internal/client"
	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// seatCell renders one seat as "<number><gender><status>", for example
// "1-2F." for an available female-only seat.
func seatCell(s client.Seat) string {
	g := " "
	switch s.Gender {
	case model.MaleOnly:
		g = "M"
	case model.FemaleOnly:
		g = "F"
	}
	st := "."
	switch s.Status {
	case model.SeatLocked:
		st = "L"
		if s.Mine {
			st = "*"
		}
	case model.SeatBooked:
		st = "B"
		if s.Mine {
			st = "#"
		}
	}
	return s.Number + g + st
}

// printSeatMap writes the seats row by row.  seats must be ordered by row
// then column, as the API returns them.
func printSeatMap(w io.Writer, seats []client.Seat) {
	row := 0
	for _, s := range seats {
		if s.Row != row {
			if row != 0 {
				fmt.Fprintln(w)
			}
			row = s.Row
		}
		fmt.Fprintf(w, "%-8s", seatCell(s))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "legend: M/F gender-only  . free  L locked  * your lock  B booked  # your booking")
}
