// Package compliance decides whether a user may occupy a seat under the
// gender seating policy.  Everything in this package is a pure function of
// its arguments; callers pass the seat map they observed.
package compliance

import "github.com/iliyamo/trip-seat-booking/internal/model"

// Adjacent reports whether two grid positions are physically adjacent: same
// row with column distance 1, or same column with row distance 1.  Diagonal
// positions are not adjacent and a position is not adjacent to itself.
func Adjacent(a, b model.Position) bool {
	switch {
	case a.Row == b.Row:
		return abs(a.Column-b.Column) == 1
	case a.Column == b.Column:
		return abs(a.Row-b.Row) == 1
	}
	return false
}

// Neighbors returns the seats of all that are adjacent to seat, in the order
// they appear in all.
func Neighbors(seat model.Seat, all []model.Seat) []model.Seat {
	var out []model.Seat
	for _, s := range all {
		if s.ID == seat.ID {
			continue
		}
		if Adjacent(seat.Position(), s.Position()) {
			out = append(out, s)
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
