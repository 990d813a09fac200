package model

import "fmt"

// Layout describes the seat grid of a trip before it is created.
type Layout struct {
	Rows    int
	Columns int
	// Genders holds the positions that carry a gender constraint; every other
	// position is unrestricted.
	Genders map[Position]GenderConstraint
}

// DefaultLayout is the reference seat map: 5 rows of 4 seats with the first
// row alternating male-only and female-only.
func DefaultLayout() Layout {
	return Layout{
		Rows:    5,
		Columns: 4,
		Genders: map[Position]GenderConstraint{
			{Row: 1, Column: 1}: MaleOnly,
			{Row: 1, Column: 2}: FemaleOnly,
			{Row: 1, Column: 3}: MaleOnly,
			{Row: 1, Column: 4}: FemaleOnly,
		},
	}
}

// SeatNumber is the display label of a position.
func SeatNumber(p Position) string { return fmt.Sprintf("%d-%d", p.Row, p.Column) }

// Validate checks the grid size and that every constrained position lies on
// the grid.
func (l Layout) Validate() error {
	if l.Rows < 1 || l.Columns < 1 {
		return fmt.Errorf("layout needs at least one row and column, got %dx%d", l.Rows, l.Columns)
	}
	for p, c := range l.Genders {
		if p.Row < 1 || p.Row > l.Rows || p.Column < 1 || p.Column > l.Columns {
			return fmt.Errorf("seat %s is outside the %dx%d grid", SeatNumber(p), l.Rows, l.Columns)
		}
		if c != Unrestricted && !c.Restricted() {
			return fmt.Errorf("seat %s: unknown gender constraint %q", SeatNumber(p), c)
		}
	}
	return nil
}

// Seats materializes the layout as available seats of tripID in row-major
// order.  newID supplies the seat identifiers.
func (l Layout) Seats(tripID string, newID func() string) []Seat {
	seats := make([]Seat, 0, l.Rows*l.Columns)
	for r := 1; r <= l.Rows; r++ {
		for c := 1; c <= l.Columns; c++ {
			p := Position{Row: r, Column: c}
			g, ok := l.Genders[p]
			if !ok {
				g = Unrestricted
			}
			seats = append(seats, Seat{
				ID:     newID(),
				TripID: tripID,
				Row:    r,
				Column: c,
				Number: SeatNumber(p),
				Gender: g,
				Status: SeatAvailable,
			})
		}
	}
	return seats
}
