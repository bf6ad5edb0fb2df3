package engine

import "fmt"

// PlayTile validates and applies a play by the given seat. A rejected play
// leaves the state untouched, with one deliberate exception: when the tile
// matches both ends and no side was supplied, the tile is parked in
// AwaitingSide and ErrAmbiguousSideRequired is returned so the caller can
// resupply the action with a side choice.
func (g *GameState) PlayTile(player uint8, t Tile, side Side) error {
	switch g.Phase() {
	case PhaseWaiting:
		return ErrNotStarted
	case PhaseFinished:
		return ErrFinished
	}
	if player != g.CurrentPlayer {
		return ErrNotYourTurn
	}
	idx, ok := g.findInHand(player, t)
	if !ok {
		return ErrTileNotInHand
	}
	t = g.Players[player].Hand[idx]

	// Opening move: restricted to the starter's required tile.
	if g.ChainLen == 0 {
		if !t.SameTile(g.Opening) {
			return fmt.Errorf("%w: opening move must be %s", ErrIllegalMove, g.Opening)
		}
		g.placeFirst(player, idx)
		return nil
	}

	canLeft := g.LeftEnd != OpenEnd && t.Matches(uint8(g.LeftEnd))
	canRight := g.RightEnd != OpenEnd && t.Matches(uint8(g.RightEnd))
	if !canLeft && !canRight {
		return ErrIllegalMove
	}

	switch side {
	case SideLeft:
		if !canLeft {
			return ErrIllegalMove
		}
	case SideRight:
		if !canRight {
			return ErrIllegalMove
		}
	default:
		if canLeft && canRight {
			g.AwaitingSide = t
			return ErrAmbiguousSideRequired
		}
		if canLeft {
			side = SideLeft
		} else {
			side = SideRight
		}
	}

	g.place(player, idx, side)
	return nil
}

// ChooseSide resolves a pending ambiguous play with an explicit side.
func (g *GameState) ChooseSide(player uint8, side Side) error {
	if g.AwaitingSide == EmptyTile {
		return ErrNoPendingSide
	}
	if side != SideLeft && side != SideRight {
		return ErrAmbiguousSideRequired
	}
	return g.PlayTile(player, g.AwaitingSide, side)
}

// Pass advances the turn without a play. It is legal only when the acting
// player is current and holds no playable tile. A pass that leaves no seat
// with a legal move finishes the round as a stalemate.
func (g *GameState) Pass(player uint8) error {
	switch g.Phase() {
	case PhaseWaiting:
		return ErrNotStarted
	case PhaseFinished:
		return ErrFinished
	}
	if player != g.CurrentPlayer {
		return ErrNotYourTurn
	}
	if g.HasLegalMove(player) {
		return ErrMustPlayIfAble
	}

	if !g.anyLegalMoveRemaining() {
		g.Flags |= FlagFinished | FlagStalemate
		return nil
	}

	g.CurrentPlayer = g.NextPlayer(g.CurrentPlayer)
	g.TurnNumber++
	return nil
}

// findInHand locates a tile in a player's hand, ignoring orientation.
func (g *GameState) findInHand(player uint8, t Tile) (uint8, bool) {
	ps := &g.Players[player]
	for i := uint8(0); i < ps.HandLen; i++ {
		if ps.Hand[i].SameTile(t) {
			return i, true
		}
	}
	return 0, false
}

// removeFromHand deletes the tile at idx, preserving hand order.
func (g *GameState) removeFromHand(player, idx uint8) {
	ps := &g.Players[player]
	copy(ps.Hand[idx:], ps.Hand[idx+1:ps.HandLen])
	ps.HandLen--
	ps.Hand[ps.HandLen] = EmptyTile
}

// placeFirst applies the opening play: the tile's own left/right pips become
// the two chain ends and the layout seeds at the origin.
func (g *GameState) placeFirst(player, idx uint8) {
	t := g.Players[player].Hand[idx]
	pos := g.Layout.NextPosition(t, SideRight)
	g.Chain[0] = PlacedTile{
		Tile:       t,
		X:          pos.X,
		Y:          pos.Y,
		Rotation:   pos.Rotation,
		Side:       SideRight,
		Dir:        pos.Dir,
		CornerTurn: pos.CornerTurn,
		Connection: t.Left(), // no prior chain; meaningful from the second tile on
	}
	g.ChainLen = 1
	g.LeftEnd = int8(t.Left())
	g.RightEnd = int8(t.Right())
	g.Opening = EmptyTile

	g.removeFromHand(player, idx)
	g.finishPlay(player)
}

// place applies an accepted non-opening play on the given end.
func (g *GameState) place(player, idx uint8, side Side) {
	t := g.Players[player].Hand[idx]

	var target uint8
	if side == SideLeft {
		target = uint8(g.LeftEnd)
	} else {
		target = uint8(g.RightEnd)
	}
	oriented := ResolveOrientation(t, target, side)
	newEnd := t.OtherSide(target)

	pos := g.Layout.NextPosition(t, side)
	placed := PlacedTile{
		Tile:       oriented,
		X:          pos.X,
		Y:          pos.Y,
		Rotation:   pos.Rotation,
		Side:       side,
		Dir:        pos.Dir,
		CornerTurn: pos.CornerTurn,
		Connection: target,
	}

	if side == SideLeft {
		// Prepend, keeping the sequence in physical left-to-right order.
		copy(g.Chain[1:g.ChainLen+1], g.Chain[:g.ChainLen])
		g.Chain[0] = placed
		g.ChainLen++
		g.LeftEnd = int8(newEnd)
	} else {
		g.Chain[g.ChainLen] = placed
		g.ChainLen++
		g.RightEnd = int8(newEnd)
	}

	g.removeFromHand(player, idx)
	g.finishPlay(player)
}

// finishPlay clears pending selection state, then either ends the round on
// an emptied hand or advances the turn exactly one seat.
func (g *GameState) finishPlay(player uint8) {
	g.AwaitingSide = EmptyTile
	if g.Players[player].HandLen == 0 {
		g.Flags |= FlagFinished
		g.Winner = int8(player)
		return
	}
	g.CurrentPlayer = g.NextPlayer(g.CurrentPlayer)
	g.TurnNumber++
}
