package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// LayoutFromEnv builds the seat layout from SEAT_ROWS, SEAT_COLS and
// SEAT_GENDERS.  When SEAT_GENDERS is unset the reference constraints are
// kept for the positions that fit the grid; when it is set, even to an empty
// value, it replaces them.
func LayoutFromEnv() (model.Layout, error) {
	def := model.DefaultLayout()
	rows := envInt("SEAT_ROWS", def.Rows)
	cols := envInt("SEAT_COLS", def.Columns)

	list, set := os.LookupEnv("SEAT_GENDERS")
	if !set {
		genders := make(map[model.Position]model.GenderConstraint)
		for p, g := range def.Genders {
			if p.Row <= rows && p.Column <= cols {
				genders[p] = g
			}
		}
		l := model.Layout{Rows: rows, Columns: cols, Genders: genders}
		return l, l.Validate()
	}
	return ParseLayout(rows, cols, list)
}

// ParseLayout parses a constraint list such as "1-1:male,1-2:female" for a
// rows x cols grid.
func ParseLayout(rows, cols int, list string) (model.Layout, error) {
	l := model.Layout{Rows: rows, Columns: cols, Genders: make(map[model.Position]model.GenderConstraint)}
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		seat, gender, ok := strings.Cut(item, ":")
		if !ok {
			return model.Layout{}, fmt.Errorf("seat gender %q: want <row>-<col>:<gender>", item)
		}
		p, err := parsePosition(seat)
		if err != nil {
			return model.Layout{}, err
		}
		g, err := model.ParseGenderConstraint(strings.ToLower(strings.TrimSpace(gender)))
		if err != nil {
			return model.Layout{}, fmt.Errorf("seat %s: %w", seat, err)
		}
		if _, dup := l.Genders[p]; dup {
			return model.Layout{}, fmt.Errorf("seat %s listed twice", seat)
		}
		l.Genders[p] = g
	}
	return l, l.Validate()
}

func parsePosition(s string) (model.Position, error) {
	r, c, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return model.Position{}, fmt.Errorf("seat %q: want <row>-<col>", s)
	}
	row, err := strconv.Atoi(r)
	if err != nil {
		return model.Position{}, fmt.Errorf("seat %q: bad row", s)
	}
	col, err := strconv.Atoi(c)
	if err != nil {
		return model.Position{}, fmt.Errorf("seat %q: bad column", s)
	}
	return model.Position{Row: row, Column: col}, nil
}
