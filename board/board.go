// Package board holds the static Ludo topology: the shared ring, each color's
// entry cell and private home column, and the safe cells.
package board

import (
	"errors"
	"fmt"
)

type Color string

const (
	Red    Color = "red"
	Blue   Color = "blue"
	Green  Color = "green"
	Yellow Color = "yellow"
)

const (
	// RingSize is the number of cells on the shared ring.
	RingSize = 52
	// HomeColumnSize is the number of private cells after a color leaves the ring.
	HomeColumnSize = 6
	// HomeEntry is the first path offset inside the home column.
	HomeEntry = RingSize
	// PathLength counts every offset a pawn can occupy, yard exit to terminal.
	PathLength = RingSize + HomeColumnSize
	// Terminal is the offset of the final home cell.
	Terminal = PathLength - 1

	// ExitRoll is the only roll that lets a pawn leave its yard.
	ExitRoll = 6
	MaxRoll  = 6
)

var (
	ErrOvershoot     = errors.New("move overshoots the final home cell")
	ErrInvalidSteps  = errors.New("steps must be between 1 and 6")
	ErrInvalidOffset = errors.New("offset is outside the path")
	ErrUnknownColor  = errors.New("unknown color")
)

// Play order, also the order colors are handed out at game start.
var colors = []Color{Red, Blue, Green, Yellow}

var entryCells = map[Color]int{
	Red:    0,
	Blue:   13,
	Green:  26,
	Yellow: 39,
}

var safeCells = map[int]bool{
	0: true, 8: true,
	13: true, 21: true,
	26: true, 34: true,
	39: true, 47: true,
}

// Colors returns the fixed color order.
func Colors() []Color {
	out := make([]Color, len(colors))
	copy(out, colors)
	return out
}

// ColorAt returns the color handed to the i-th seated player.
func ColorAt(i int) (Color, error) {
	if i < 0 || i >= len(colors) {
		return "", fmt.Errorf("no color for seat %d: %w", i, ErrUnknownColor)
	}
	return colors[i], nil
}

func ParseColor(s string) (Color, error) {
	c := Color(s)
	if _, ok := entryCells[c]; !ok {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownColor)
	}
	return c, nil
}

func (c Color) Valid() bool {
	_, ok := entryCells[c]
	return ok
}

// EntryCell is the ring cell a pawn of color c lands on when it leaves the yard.
func EntryCell(c Color) int {
	return entryCells[c]
}

// IsSafe reports whether cell is a ring cell where captures cannot happen.
func IsSafe(cell int) bool {
	return safeCells[cell]
}

// SafeCells lists the safe ring cells in ascending order.
func SafeCells() []int {
	out := make([]int, 0, len(safeCells))
	for i := 0; i < RingSize; i++ {
		if safeCells[i] {
			out = append(out, i)
		}
	}
	return out
}

// Cell maps a path offset of color c to its ring cell. ok is false once the
// offset is inside the home column, where cells are private to the color.
func Cell(c Color, offset int) (cell int, ok bool) {
	if offset < 0 || offset >= HomeEntry {
		return 0, false
	}
	return (entryCells[c] + offset) % RingSize, true
}

// Segment says which part of the path an offset falls in.
type Segment int

const (
	SegmentRing Segment = iota
	SegmentHomeColumn
	SegmentTerminal
)

// Step is the result of advancing along a color's path.
type Step struct {
	Offset  int
	Segment Segment
}

// HomeOffset is the offset relative to the start of the home column.
func (s Step) HomeOffset() int {
	return s.Offset - HomeEntry
}

// Advance moves steps cells along color c's path from offset. It returns
// ErrOvershoot when the move would pass the terminal cell; such a move is
// simply not legal.
func Advance(c Color, offset, steps int) (Step, error) {
	if !c.Valid() {
		return Step{}, ErrUnknownColor
	}
	if steps < 1 || steps > MaxRoll {
		return Step{}, ErrInvalidSteps
	}
	if offset < 0 || offset > Terminal {
		return Step{}, ErrInvalidOffset
	}

	next := offset + steps
	if next > Terminal {
		return Step{}, ErrOvershoot
	}

	return Step{Offset: next, Segment: segmentOf(next)}, nil
}

func segmentOf(offset int) Segment {
	switch {
	case offset == Terminal:
		return SegmentTerminal
	case offset >= HomeEntry:
		return SegmentHomeColumn
	default:
		return SegmentRing
	}
}
