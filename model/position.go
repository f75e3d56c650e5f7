package model

import "fmt"

// Position is a 2D point in integer nanometers, KiCad's internal unit.
type Position struct {
	X, Y int64
}

// Add returns the componentwise sum.
func (p Position) Add(other Position) Position {
	return Position{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the componentwise difference.
func (p Position) Sub(other Position) Position {
	return Position{X: p.X - other.X, Y: p.Y - other.Y}
}

// String renders the position for log fields and diagnostics.
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
