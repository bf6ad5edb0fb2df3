package engine

import "testing"

// TestCanPlay covers the playability contract against open and set ends.
func TestCanPlay(t *testing.T) {
	cases := []struct {
		name     string
		tile     Tile
		left     int8
		right    int8
		playable bool
	}{
		{"both ends open", NewTile(1, 2), OpenEnd, OpenEnd, true},
		{"matches left end", NewTile(3, 5), 5, 2, true},
		{"matches right end", NewTile(2, 6), 5, 2, true},
		{"matches neither", NewTile(1, 2), 5, 6, false},
		{"double matches", NewTile(6, 6), 6, 3, true},
		{"only left set", NewTile(0, 4), 4, OpenEnd, true},
	}
	for _, tc := range cases {
		if got := CanPlay(tc.tile, tc.left, tc.right); got != tc.playable {
			t.Errorf("%s: CanPlay(%s, %d, %d) = %v, want %v",
				tc.name, tc.tile, tc.left, tc.right, got, tc.playable)
		}
	}
}

// TestResolveOrientation verifies the matching pip faces the chain.
func TestResolveOrientation(t *testing.T) {
	tile := NewTile(3, 5)

	// Right end: matching pip goes left, toward the chain.
	got := ResolveOrientation(tile, 5, SideRight)
	if got.Left() != 5 || got.Right() != 3 {
		t.Errorf("right-side orientation = %s, want 5-3", got)
	}

	// Left end: matching pip goes right, toward the chain.
	got = ResolveOrientation(tile, 5, SideLeft)
	if got.Left() != 3 || got.Right() != 5 {
		t.Errorf("left-side orientation = %s, want 3-5", got)
	}

	// Already oriented: unchanged.
	got = ResolveOrientation(tile, 3, SideRight)
	if got != tile {
		t.Errorf("orientation = %s, want %s unchanged", got, tile)
	}
}

// TestLegalMovesMask verifies the per-hand playability bitmask.
func TestLegalMovesMask(t *testing.T) {
	g := playingState(
		[]Tile{NewTile(5, 5), NewTile(1, 2), NewTile(3, 5)},
		[]Tile{NewTile(0, 1), NewTile(0, 2)},
	)
	setChain(&g, NewTile(5, 6)) // ends 5 / 6

	mask := g.LegalMoves(0)
	if mask != 0b101 {
		t.Errorf("player 0 mask = %#b, want 0b101", mask)
	}
	if g.HasLegalMove(1) {
		t.Error("player 1 should have no legal move against ends 5/6")
	}

	list := g.LegalMovesList(0)
	if len(list) != 2 {
		t.Fatalf("LegalMovesList length = %d, want 2", len(list))
	}
	if !list[0].SameTile(NewTile(5, 5)) || !list[1].SameTile(NewTile(3, 5)) {
		t.Errorf("LegalMovesList = %v", list)
	}
}

// TestLegalMovesOpeningRestriction verifies only the required opening tile is
// legal before the chain exists.
func TestLegalMovesOpeningRestriction(t *testing.T) {
	g := playingState(
		[]Tile{NewTile(6, 6), NewTile(1, 2)},
		[]Tile{NewTile(3, 4)},
	)
	if g.CurrentPlayer != 0 {
		t.Fatalf("starter = %d, want 0", g.CurrentPlayer)
	}
	mask := g.LegalMoves(0)
	if mask != 0b1 {
		t.Errorf("opening mask = %#b, want only the 6-6 bit", mask)
	}
}
