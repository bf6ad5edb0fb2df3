package engine

// CanPlay reports whether a tile may be played against the given chain ends.
// Both ends open means the first play, where any tile matches; the opening
// restriction to the starter's highest double is enforced by PlayTile, not
// here.
func CanPlay(t Tile, leftEnd, rightEnd int8) bool {
	if leftEnd == OpenEnd && rightEnd == OpenEnd {
		return true
	}
	if leftEnd != OpenEnd && t.Matches(uint8(leftEnd)) {
		return true
	}
	if rightEnd != OpenEnd && t.Matches(uint8(rightEnd)) {
		return true
	}
	return false
}

// ResolveOrientation returns the tile oriented for placement against
// targetEnd on the given side: for the right end the matching pip faces
// left (toward the chain), for the left end it faces right. A tile that
// does not match targetEnd is returned unchanged; callers check CanPlay
// first.
func ResolveOrientation(t Tile, targetEnd uint8, side Side) Tile {
	if !t.Matches(targetEnd) {
		return t
	}
	switch side {
	case SideLeft:
		if t.Right() != targetEnd {
			return t.Reversed()
		}
	default:
		if t.Left() != targetEnd {
			return t.Reversed()
		}
	}
	return t
}

// LegalMoves returns a bitmask over the player's hand indices: bit i is set
// if Hand[i] is currently playable. On the opening move only the required
// opening tile is legal.
func (g *GameState) LegalMoves(player uint8) uint8 {
	var mask uint8
	ps := &g.Players[player]
	for i := uint8(0); i < ps.HandLen; i++ {
		t := ps.Hand[i]
		if g.ChainLen == 0 {
			if player == g.CurrentPlayer && t.SameTile(g.Opening) {
				mask |= 1 << i
			}
			continue
		}
		if CanPlay(t, g.LeftEnd, g.RightEnd) {
			mask |= 1 << i
		}
	}
	return mask
}

// LegalMovesList returns the playable tiles themselves (allocates; for
// adapters and tests).
func (g *GameState) LegalMovesList(player uint8) []Tile {
	mask := g.LegalMoves(player)
	var out []Tile
	for i := uint8(0); i < g.Players[player].HandLen; i++ {
		if mask>>i&1 == 1 {
			out = append(out, g.Players[player].Hand[i])
		}
	}
	return out
}

// HasLegalMove reports whether the player holds at least one playable tile.
func (g *GameState) HasLegalMove(player uint8) bool {
	return g.LegalMoves(player) != 0
}

// anyLegalMoveRemaining reports whether any seated player can still play
// against the current ends. Used for stalemate detection after a pass.
func (g *GameState) anyLegalMoveRemaining() bool {
	n := g.Rules.numPlayers()
	for p := uint8(0); p < n; p++ {
		ps := &g.Players[p]
		for i := uint8(0); i < ps.HandLen; i++ {
			if CanPlay(ps.Hand[i], g.LeftEnd, g.RightEnd) {
				return true
			}
		}
	}
	return false
}
