package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/judgegodwins/ludo-server/board"
)

type Action string

const (
	ActionRoll Action = "roll"
	ActionMove Action = "move"
)

// Effects describes what a transition did, for notifications and logs.
type Effects struct {
	Action    Action    `json:"action"`
	Seq       int       `json:"seq"`
	Player    string    `json:"player"`
	Roll      int       `json:"roll"`
	Forfeited bool      `json:"forfeited,omitempty"`
	Pawn      PawnID    `json:"pawn,omitempty"`
	From      *Position `json:"from,omitempty"`
	To        *Position `json:"to,omitempty"`
	Captured  []PawnID  `json:"captured,omitempty"`
	Finished  bool      `json:"finished,omitempty"`
	ExtraTurn bool      `json:"extraTurn,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	NextTurn  string    `json:"nextTurn"`
}

// Transition is the outcome of one action. Changes holds every field the
// action touched, keyed by path relative to the game document, and must be
// written in a single update. A nil value clears the field.
type Transition struct {
	State   State
	Changes map[string]any
	Effects Effects
}

func pawnField(id PawnID) string {
	return "pawns/" + string(id)
}

func finishedField(owner string) string {
	return "players/" + owner + "/finishedPawns"
}

func (s State) checkTurn(actor string) error {
	if s.Over() || s.Status == StatusOver {
		return ErrGameOver
	}
	if actor == "" || actor != s.CurrentPlayer() {
		return ErrNotYourTurn
	}
	return nil
}

func (s *State) passTurn() {
	s.CurrentTurnIndex = (s.CurrentTurnIndex + 1) % len(s.PlayerOrder)
}

// stamp records effects as the last action and bumps the sequence number.
func (s *State) stamp(now time.Time, effects *Effects, changes map[string]any) {
	s.Seq++
	s.UpdatedAt = now
	effects.Seq = s.Seq
	last := *effects
	s.LastAction = &last
	changes["seq"] = s.Seq
	changes["updatedAt"] = now
	changes["lastAction"] = last
}

// Roll throws the die for actor. When the value cannot be used by any of the
// actor's pawns the roll is forfeited and the turn passes in the same
// transition.
func Roll(s State, actor string, dice Dice, now time.Time) (Transition, error) {
	if err := s.checkTurn(actor); err != nil {
		return Transition{}, err
	}
	if s.PendingDiceValue != nil {
		return Transition{}, ErrRollAlreadyPending
	}

	value := dice.Roll()
	if value < 1 || value > board.MaxRoll {
		return Transition{}, fmt.Errorf("dice produced %d: %w", value, board.ErrInvalidSteps)
	}

	next := s.clone()
	next.LastRoll = value
	changes := map[string]any{"lastRoll": value}
	effects := Effects{Action: ActionRoll, Player: actor, Roll: value}

	if len(next.legalMoves(actor, value)) == 0 {
		next.PendingDiceValue = nil
		next.passTurn()
		effects.Forfeited = true
		changes["pendingDiceValue"] = nil
		changes["currentTurnIndex"] = next.CurrentTurnIndex
	} else {
		next.PendingDiceValue = &value
		changes["pendingDiceValue"] = value
	}

	effects.NextTurn = next.CurrentPlayer()
	next.stamp(now, &effects, changes)

	return Transition{State: next, Changes: changes, Effects: effects}, nil
}

// Move spends the pending roll on one of actor's pawns.
func Move(s State, actor string, id PawnID, now time.Time) (Transition, error) {
	if err := s.checkTurn(actor); err != nil {
		return Transition{}, err
	}
	if s.PendingDiceValue == nil {
		return Transition{}, ErrNoRollPending
	}

	pawn, ok := s.Pawns[id]
	if !ok {
		return Transition{}, ErrUnknownPawn
	}
	if pawn.Owner != actor {
		return Transition{}, ErrNotOwner
	}

	roll := *s.PendingDiceValue
	target, err := Destination(pawn, roll)
	if err != nil {
		return Transition{}, err
	}

	next := s.clone()
	changes := map[string]any{}
	from := pawn.Position
	effects := Effects{Action: ActionMove, Player: actor, Roll: roll, Pawn: id, From: &from, To: &target}

	pawn.Position = target
	next.Pawns[id] = pawn
	changes[pawnField(id)] = pawn

	if victim, ok := next.occupantToCapture(pawn); ok {
		captured := next.Pawns[victim]
		captured.Position = Yard(captured.Index)
		next.Pawns[victim] = captured
		changes[pawnField(victim)] = captured
		effects.Captured = append(effects.Captured, victim)
	}

	if target.State == Finished {
		info := next.Players[actor]
		info.FinishedPawns++
		next.Players[actor] = info
		changes[finishedField(actor)] = info.FinishedPawns
		effects.Finished = true

		if info.FinishedPawns == PawnsPerPlayer && next.Winner == nil {
			winner := actor
			next.Winner = &winner
			next.Status = StatusOver
			changes["winner"] = winner
			changes["status"] = StatusOver
			effects.Winner = winner
		}
	}

	// A six and a capture each grant one more roll; together still only one.
	extra := roll == board.ExitRoll || (len(effects.Captured) > 0 && next.Rules.CaptureGrantsExtraTurn)
	if !extra && next.Winner == nil {
		next.passTurn()
		changes["currentTurnIndex"] = next.CurrentTurnIndex
	}
	effects.ExtraTurn = extra && next.Winner == nil

	next.PendingDiceValue = nil
	changes["pendingDiceValue"] = nil

	effects.NextTurn = next.CurrentPlayer()
	next.stamp(now, &effects, changes)

	return Transition{State: next, Changes: changes, Effects: effects}, nil
}

// Destination is where pawn would end up with roll, or ErrIllegalMove.
func Destination(pawn Pawn, roll int) (Position, error) {
	switch pawn.Position.State {
	case InYard:
		if roll != board.ExitRoll {
			return Position{}, fmt.Errorf("pawn leaves the yard only on a %d: %w", board.ExitRoll, ErrIllegalMove)
		}
		return Path(0), nil
	case Finished:
		return Position{}, fmt.Errorf("pawn is already home: %w", ErrIllegalMove)
	}

	offset, _ := pawn.Position.PathOffset()
	step, err := board.Advance(pawn.Color, offset, roll)
	if errors.Is(err, board.ErrOvershoot) {
		return Position{}, fmt.Errorf("%v: %w", err, ErrIllegalMove)
	}
	if err != nil {
		return Position{}, err
	}

	return positionAt(step), nil
}

// occupantToCapture finds the first opposing pawn on the mover's ring cell.
// Safe cells and the home column never capture.
func (s State) occupantToCapture(mover Pawn) (PawnID, bool) {
	cell, ok := mover.Cell()
	if !ok || board.IsSafe(cell) {
		return "", false
	}

	for _, id := range s.sortedPawnIDs() {
		other := s.Pawns[id]
		if other.Owner == mover.Owner {
			continue
		}
		if c, ok := other.Cell(); ok && c == cell {
			return id, true
		}
	}

	return "", false
}

func (s State) legalMoves(actor string, roll int) []PawnID {
	var out []PawnID
	for _, id := range s.PawnsOf(actor) {
		if _, err := Destination(s.Pawns[id], roll); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// LegalMoves lists the pawns actor may move with the pending roll. It is empty
// when it is not actor's turn or nothing has been rolled.
func LegalMoves(s State, actor string) []PawnID {
	if s.checkTurn(actor) != nil || s.PendingDiceValue == nil {
		return nil
	}
	return s.legalMoves(actor, *s.PendingDiceValue)
}

// CheckSeq rejects an intent quoting a seq other than the committed one. A
// zero seq means the client did not quote one.
func CheckSeq(s State, seq int) error {
	if seq != 0 && seq != s.Seq {
		return fmt.Errorf("expected seq %d, got %d: %w", s.Seq, seq, ErrStaleIntent)
	}
	return nil
}
