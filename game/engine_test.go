package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/judgegodwins/ludo-server/board"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newGame(t *testing.T, ids ...string) State {
	t.Helper()

	seats := make([]Seat, 0, len(ids))
	for _, id := range ids {
		seats = append(seats, Seat{ID: id, Name: "name-" + id})
	}

	s, err := New(seats, DefaultRules(), now)
	require.NoError(t, err)
	return s
}

func place(s State, id PawnID, pos Position) State {
	p := s.Pawns[id]
	p.Position = pos
	s.Pawns[id] = p
	return s
}

func pending(s State, v int) State {
	s.PendingDiceValue = &v
	return s
}

// ringOffset finds the offset along color c's path that lands on cell.
func ringOffset(c board.Color, cell int) int {
	return (cell - board.EntryCell(c) + board.RingSize) % board.RingSize
}

func TestNew(t *testing.T) {
	s := newGame(t, "p1", "p2")

	require.Equal(t, []string{"p1", "p2"}, s.PlayerOrder)
	require.Equal(t, board.Red, s.Players["p1"].Color)
	require.Equal(t, board.Blue, s.Players["p2"].Color)
	require.Len(t, s.Pawns, 8)
	for _, p := range s.Pawns {
		require.Equal(t, InYard, p.Position.State)
	}
	require.Equal(t, "p1", s.CurrentPlayer())
	require.Nil(t, s.PendingDiceValue)
	require.Nil(t, s.Winner)

	_, err := New([]Seat{{ID: "solo"}}, DefaultRules(), now)
	require.ErrorIs(t, err, ErrPlayerCount)

	_, err = New([]Seat{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}, DefaultRules(), now)
	require.ErrorIs(t, err, ErrPlayerCount)

	_, err = New([]Seat{{ID: "a"}, {ID: "a"}}, DefaultRules(), now)
	require.Error(t, err)
}

func TestRoll(t *testing.T) {
	t.Run("rejects the wrong player", func(t *testing.T) {
		s := newGame(t, "p1", "p2")
		_, err := Roll(s, "p2", NewFixedDice(6), now)
		require.ErrorIs(t, err, ErrNotYourTurn)
	})

	t.Run("rejects a second roll", func(t *testing.T) {
		s := pending(newGame(t, "p1", "p2"), 6)
		_, err := Roll(s, "p1", NewFixedDice(6), now)
		require.ErrorIs(t, err, ErrRollAlreadyPending)
	})

	t.Run("six with all pawns in yard offers every pawn", func(t *testing.T) {
		s := newGame(t, "p1", "p2")

		tr, err := Roll(s, "p1", NewFixedDice(6), now)
		require.NoError(t, err)
		require.NotNil(t, tr.State.PendingDiceValue)
		require.Equal(t, 6, *tr.State.PendingDiceValue)
		require.Equal(t, 0, tr.State.CurrentTurnIndex)
		require.Equal(t, 6, tr.Changes["pendingDiceValue"])
		require.ElementsMatch(t, s.PawnsOf("p1"), LegalMoves(tr.State, "p1"))
		require.False(t, tr.Effects.Forfeited)

		// the input value is untouched
		require.Nil(t, s.PendingDiceValue)
	})

	t.Run("unusable roll forfeits and passes the turn", func(t *testing.T) {
		s := newGame(t, "p1", "p2", "p3")

		for v := 1; v < 6; v++ {
			tr, err := Roll(s, "p1", NewFixedDice(v), now)
			require.NoError(t, err)
			require.Nil(t, tr.State.PendingDiceValue)
			require.Equal(t, 1, tr.State.CurrentTurnIndex)
			require.True(t, tr.Effects.Forfeited)
			require.Equal(t, v, tr.State.LastRoll)
			require.Contains(t, tr.Changes, "pendingDiceValue")
			require.Nil(t, tr.Changes["pendingDiceValue"])
			require.Equal(t, 1, tr.Changes["currentTurnIndex"])
			require.Equal(t, "p2", tr.Effects.NextTurn)
		}
	})

	t.Run("overshooting pawns forfeit too", func(t *testing.T) {
		s := newGame(t, "p1", "p2")
		s = place(s, NewPawnID("p1", 0), HomeColumn(4))

		tr, err := Roll(s, "p1", NewFixedDice(3), now)
		require.NoError(t, err)
		require.True(t, tr.Effects.Forfeited)
		require.Equal(t, 1, tr.State.CurrentTurnIndex)

		tr, err = Roll(s, "p1", NewFixedDice(1), now)
		require.NoError(t, err)
		require.False(t, tr.Effects.Forfeited)
		require.Equal(t, []PawnID{NewPawnID("p1", 0)}, LegalMoves(tr.State, "p1"))
	})

	t.Run("post state always has a move or no pending roll", func(t *testing.T) {
		s := newGame(t, "p1", "p2")
		s = place(s, NewPawnID("p1", 1), Path(50))
		s = place(s, NewPawnID("p1", 2), HomeColumn(2))

		for v := 1; v <= 6; v++ {
			tr, err := Roll(s, "p1", NewFixedDice(v), now)
			require.NoError(t, err)
			if tr.State.PendingDiceValue != nil {
				require.NotEmpty(t, LegalMoves(tr.State, "p1"))
			} else {
				require.NotEqual(t, s.CurrentTurnIndex, tr.State.CurrentTurnIndex)
			}
		}
	})

	t.Run("bumps seq", func(t *testing.T) {
		s := newGame(t, "p1", "p2")
		tr, err := Roll(s, "p1", NewFixedDice(2), now)
		require.NoError(t, err)
		require.Equal(t, 1, tr.State.Seq)
		require.Equal(t, 1, tr.Changes["seq"])
		require.NoError(t, CheckSeq(tr.State, 1))
		require.NoError(t, CheckSeq(tr.State, 0))
		require.ErrorIs(t, CheckSeq(tr.State, 3), ErrStaleIntent)
	})
}

func TestMove(t *testing.T) {
	t.Run("validates the actor and the pawn", func(t *testing.T) {
		s := newGame(t, "p1", "p2")

		_, err := Move(s, "p1", NewPawnID("p1", 0), now)
		require.ErrorIs(t, err, ErrNoRollPending)

		s = pending(s, 6)
		_, err = Move(s, "p2", NewPawnID("p2", 0), now)
		require.ErrorIs(t, err, ErrNotYourTurn)

		_, err = Move(s, "p1", NewPawnID("p2", 0), now)
		require.ErrorIs(t, err, ErrNotOwner)

		_, err = Move(s, "p1", "nope", now)
		require.ErrorIs(t, err, ErrUnknownPawn)
	})

	t.Run("yard exit needs a six", func(t *testing.T) {
		s := pending(newGame(t, "p1", "p2"), 5)
		s = place(s, NewPawnID("p1", 3), Path(10))

		_, err := Move(s, "p1", NewPawnID("p1", 0), now)
		require.ErrorIs(t, err, ErrIllegalMove)
	})

	t.Run("overshoot is rejected not clamped", func(t *testing.T) {
		s := pending(newGame(t, "p1", "p2"), 4)
		s = place(s, NewPawnID("p1", 0), HomeColumn(3))

		_, err := Move(s, "p1", NewPawnID("p1", 0), now)
		require.ErrorIs(t, err, ErrIllegalMove)
	})

	t.Run("leaving the yard grants another roll", func(t *testing.T) {
		s := pending(newGame(t, "p1", "p2"), 6)
		id := NewPawnID("p1", 2)

		tr, err := Move(s, "p1", id, now)
		require.NoError(t, err)
		require.Equal(t, Path(0), tr.State.Pawns[id].Position)

		cell, ok := tr.State.Pawns[id].Cell()
		require.True(t, ok)
		require.Equal(t, board.EntryCell(board.Red), cell)

		require.Equal(t, 0, tr.State.CurrentTurnIndex)
		require.Nil(t, tr.State.PendingDiceValue)
		require.True(t, tr.Effects.ExtraTurn)
		require.NotContains(t, tr.Changes, "currentTurnIndex")
		require.Contains(t, tr.Changes, "pendingDiceValue")
		require.Equal(t, tr.State.Pawns[id], tr.Changes["pawns/"+string(id)])
	})

	t.Run("enters the home column", func(t *testing.T) {
		s := pending(newGame(t, "p1", "p2"), 4)
		id := NewPawnID("p1", 0)
		s = place(s, id, Path(48))

		tr, err := Move(s, "p1", id, now)
		require.NoError(t, err)
		require.Equal(t, HomeColumn(0), tr.State.Pawns[id].Position)
		require.Equal(t, 0, tr.State.Players["p1"].FinishedPawns)
		require.Equal(t, 1, tr.State.CurrentTurnIndex)
	})

	t.Run("captures on an unsafe cell", func(t *testing.T) {
		s := newGame(t, "p1", "p2", "p3")
		cell := 5
		require.False(t, board.IsSafe(cell))

		victim := NewPawnID("p1", 1)
		s = place(s, victim, Path(ringOffset(board.Red, cell)))

		mover := NewPawnID("p2", 0)
		from := ringOffset(board.Blue, cell) - 3
		s = place(s, mover, Path(from))
		s.CurrentTurnIndex = 1
		s = pending(s, 3)

		tr, err := Move(s, "p2", mover, now)
		require.NoError(t, err)
		require.Equal(t, Yard(1), tr.State.Pawns[victim].Position)
		moved, _ := tr.State.Pawns[mover].Cell()
		require.Equal(t, cell, moved)
		require.Equal(t, []PawnID{victim}, tr.Effects.Captured)
		require.Contains(t, tr.Changes, "pawns/"+string(victim))

		// capture alone keeps the turn
		require.Equal(t, 1, tr.State.CurrentTurnIndex)
		require.True(t, tr.Effects.ExtraTurn)

		// without the capture bonus the turn moves on to p3
		s.Rules.CaptureGrantsExtraTurn = false
		tr, err = Move(s, "p2", mover, now)
		require.NoError(t, err)
		require.Equal(t, Yard(1), tr.State.Pawns[victim].Position)
		require.Equal(t, 2, tr.State.CurrentTurnIndex)
		require.Equal(t, "p3", tr.Effects.NextTurn)
		require.False(t, tr.Effects.ExtraTurn)
	})

	t.Run("no capture on a safe cell", func(t *testing.T) {
		s := newGame(t, "p1", "p2")
		cell := 8
		require.True(t, board.IsSafe(cell))

		resting := NewPawnID("p1", 0)
		s = place(s, resting, Path(ringOffset(board.Red, cell)))

		mover := NewPawnID("p2", 0)
		s = place(s, mover, Path(ringOffset(board.Blue, cell)-2))
		s.CurrentTurnIndex = 1
		s = pending(s, 2)

		tr, err := Move(s, "p2", mover, now)
		require.NoError(t, err)
		require.Equal(t, s.Pawns[resting].Position, tr.State.Pawns[resting].Position)
		require.Empty(t, tr.Effects.Captured)
		require.Equal(t, 0, tr.State.CurrentTurnIndex)
	})

	t.Run("no capture between pawns of the same owner", func(t *testing.T) {
		s := pending(newGame(t, "p1", "p2"), 2)
		a, b := NewPawnID("p1", 0), NewPawnID("p1", 1)
		s = place(s, a, Path(12))
		s = place(s, b, Path(10))

		tr, err := Move(s, "p1", b, now)
		require.NoError(t, err)
		require.Equal(t, Path(12), tr.State.Pawns[a].Position)
		require.Equal(t, Path(12), tr.State.Pawns[b].Position)
		require.Empty(t, tr.Effects.Captured)
	})

	t.Run("six plus capture is still one extra turn", func(t *testing.T) {
		s := newGame(t, "p1", "p2")
		cell := 20
		victim := NewPawnID("p2", 0)
		s = place(s, victim, Path(ringOffset(board.Blue, cell)))
		mover := NewPawnID("p1", 0)
		s = place(s, mover, Path(ringOffset(board.Red, cell)-6))
		s = pending(s, 6)

		tr, err := Move(s, "p1", mover, now)
		require.NoError(t, err)
		require.Len(t, tr.Effects.Captured, 1)
		require.Equal(t, 0, tr.State.CurrentTurnIndex)
		require.Nil(t, tr.State.PendingDiceValue)

		_, err = Move(tr.State, "p1", mover, now)
		require.ErrorIs(t, err, ErrNoRollPending)
	})

	t.Run("finishing the fourth pawn wins", func(t *testing.T) {
		s := newGame(t, "p1", "p2")
		for i := 0; i < 3; i++ {
			s = place(s, NewPawnID("p1", i), Home())
		}
		info := s.Players["p1"]
		info.FinishedPawns = 3
		s.Players["p1"] = info

		last := NewPawnID("p1", 3)
		s = place(s, last, HomeColumn(2))
		s = pending(s, 3)

		tr, err := Move(s, "p1", last, now)
		require.NoError(t, err)
		require.Equal(t, Finished, tr.State.Pawns[last].Position.State)
		require.Equal(t, 4, tr.State.Players["p1"].FinishedPawns)
		require.NotNil(t, tr.State.Winner)
		require.Equal(t, "p1", *tr.State.Winner)
		require.Equal(t, StatusOver, tr.State.Status)
		require.Equal(t, "p1", tr.Changes["winner"])
		require.Equal(t, 4, tr.Changes["players/p1/finishedPawns"])

		_, err = Roll(tr.State, "p1", NewFixedDice(6), now)
		require.ErrorIs(t, err, ErrGameOver)
		_, err = Roll(tr.State, "p2", NewFixedDice(6), now)
		require.ErrorIs(t, err, ErrGameOver)
	})

	t.Run("finishing a pawn without winning", func(t *testing.T) {
		s := pending(newGame(t, "p1", "p2"), 5)
		id := NewPawnID("p1", 0)
		s = place(s, id, HomeColumn(0))

		tr, err := Move(s, "p1", id, now)
		require.NoError(t, err)
		require.Equal(t, Home(), tr.State.Pawns[id].Position)
		require.Equal(t, 1, tr.State.Players["p1"].FinishedPawns)
		require.Nil(t, tr.State.Winner)
		require.True(t, tr.Effects.Finished)
		require.Equal(t, 1, tr.State.CurrentTurnIndex)
	})

	t.Run("finished pawns cannot move", func(t *testing.T) {
		s := pending(newGame(t, "p1", "p2"), 1)
		id := NewPawnID("p1", 0)
		s = place(s, id, Home())

		_, err := Move(s, "p1", id, now)
		require.ErrorIs(t, err, ErrIllegalMove)
	})

	t.Run("turn wraps around the player order", func(t *testing.T) {
		s := newGame(t, "p1", "p2")
		s.CurrentTurnIndex = 1
		id := NewPawnID("p2", 0)
		s = place(s, id, Path(3))
		s = pending(s, 2)

		tr, err := Move(s, "p2", id, now)
		require.NoError(t, err)
		require.Equal(t, 0, tr.State.CurrentTurnIndex)
		require.Equal(t, "p1", tr.Effects.NextTurn)
	})
}

func TestDestination(t *testing.T) {
	pawn := Pawn{Owner: "p1", Color: board.Green, Index: 0, Position: Path(50)}

	pos, err := Destination(pawn, 6)
	require.NoError(t, err)
	require.Equal(t, HomeColumn(4), pos)

	pos, err = Destination(pawn, 2)
	require.NoError(t, err)
	require.Equal(t, HomeColumn(0), pos)

	pos, err = Destination(pawn, 1)
	require.NoError(t, err)
	require.Equal(t, Path(51), pos)
}

func TestFixedDice(t *testing.T) {
	d := NewFixedDice(2, 5)
	require.Equal(t, 2, d.Roll())
	require.Equal(t, 5, d.Roll())
	require.Equal(t, 2, d.Roll())

	for i := 0; i < 100; i++ {
		v := NewDice().Roll()
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 6)
	}
}

func TestLastAction(t *testing.T) {
	s := newGame(t, "p1", "p2")

	tr, err := Roll(s, "p1", NewFixedDice(6), now)
	require.NoError(t, err)
	require.NotNil(t, tr.State.LastAction)
	require.Equal(t, ActionRoll, tr.State.LastAction.Action)
	require.Equal(t, 1, tr.State.LastAction.Seq)
	require.Nil(t, tr.State.LastAction.From)
	require.Equal(t, *tr.State.LastAction, tr.Changes["lastAction"])

	id := NewPawnID("p1", 2)
	tr, err = Move(tr.State, "p1", id, now)
	require.NoError(t, err)
	require.Equal(t, ActionMove, tr.State.LastAction.Action)
	require.Equal(t, 2, tr.State.LastAction.Seq)
	require.Equal(t, id, tr.State.LastAction.Pawn)
	require.Equal(t, Yard(2), *tr.State.LastAction.From)
	require.Equal(t, Path(0), *tr.State.LastAction.To)

	// the input state is left alone
	require.Nil(t, s.LastAction)
}
