package game

import (
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/judgegodwins/ludo-server/board"
)

type Dice interface {
	Roll() int
}

type cryptoDice struct{}

// NewDice returns a fair six-sided die backed by crypto/rand.
func NewDice() Dice {
	return cryptoDice{}
}

func (cryptoDice) Roll() int {
	n, err := rand.Int(rand.Reader, big.NewInt(board.MaxRoll))
	if err != nil {
		panic(err)
	}
	return int(n.Int64()) + 1
}

// FixedDice replays a fixed sequence of values, wrapping around at the end.
type FixedDice struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewFixedDice(values ...int) *FixedDice {
	return &FixedDice{values: values}
}

func (d *FixedDice) Roll() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.values) == 0 {
		return 1
	}
	v := d.values[d.next%len(d.values)]
	d.next++
	return v
}
