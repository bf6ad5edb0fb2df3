package engine

import "testing"

// playingState builds a mid-setup state with fixed hands, started, starter
// and opening tile computed from the hands. The boneyard is emptied.
func playingState(hands ...[]Tile) GameState {
	g := NewGame(1, TableRules{NumPlayers: uint8(len(hands)), HandSize: 7})
	g.BoneLen = 0
	for p, h := range hands {
		for i, tile := range h {
			g.Players[p].Hand[i] = tile.Canonical()
		}
		g.Players[p].HandLen = uint8(len(h))
	}
	seat, opening := g.findStartingSeat()
	g.CurrentPlayer = seat
	g.Opening = opening
	g.Flags |= FlagStarted
	return g
}

// setChain places an initial tile directly, bypassing hands, so tests can
// fix the chain ends.
func setChain(g *GameState, first Tile) {
	pos := g.Layout.NextPosition(first, SideRight)
	g.Chain[0] = PlacedTile{
		Tile: first, X: pos.X, Y: pos.Y,
		Rotation: pos.Rotation, Side: SideRight, Dir: pos.Dir,
	}
	g.ChainLen = 1
	g.LeftEnd = int8(first.Left())
	g.RightEnd = int8(first.Right())
	g.Opening = EmptyTile
}

// TestNewGameBoneyard verifies a fresh game holds the full set, undealt.
func TestNewGameBoneyard(t *testing.T) {
	g := NewGame(42, DefaultTableRules())
	if g.BoneLen != SetSize {
		t.Fatalf("BoneLen = %d, want %d", g.BoneLen, SetSize)
	}
	if g.Phase() != PhaseWaiting {
		t.Errorf("Phase = %d, want PhaseWaiting", g.Phase())
	}
	if g.LeftEnd != OpenEnd || g.RightEnd != OpenEnd {
		t.Errorf("ends = %d/%d, want open", g.LeftEnd, g.RightEnd)
	}
}

// TestStartDealConservation verifies 4 hands of 7 plus the boneyard together
// form exactly the original tile set.
func TestStartDealConservation(t *testing.T) {
	g := NewGame(42, DefaultTableRules())
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if g.Phase() != PhasePlaying {
		t.Fatalf("Phase = %d, want PhasePlaying", g.Phase())
	}

	seen := make(map[Tile]int)
	total := 0
	for p := 0; p < 4; p++ {
		if g.Players[p].HandLen != 7 {
			t.Errorf("player %d HandLen = %d, want 7", p, g.Players[p].HandLen)
		}
		for i := uint8(0); i < g.Players[p].HandLen; i++ {
			seen[g.Players[p].Hand[i].Canonical()]++
			total++
		}
	}
	for i := uint8(0); i < g.BoneLen; i++ {
		seen[g.Boneyard[i].Canonical()]++
		total++
	}

	if total != SetSize {
		t.Fatalf("dealt %d tiles, want %d", total, SetSize)
	}
	for _, tile := range TileSet() {
		if seen[tile] != 1 {
			t.Errorf("tile %s appears %d times, want 1", tile, seen[tile])
		}
	}
}

// TestStartGeneralConfiguration verifies a non-empty boneyard remains for
// smaller tables, and impossible configurations are rejected.
func TestStartGeneralConfiguration(t *testing.T) {
	g := NewGame(7, TableRules{NumPlayers: 2, HandSize: 7})
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if g.BoneLen != SetSize-14 {
		t.Errorf("BoneLen = %d, want %d", g.BoneLen, SetSize-14)
	}

	bad := NewGame(7, TableRules{NumPlayers: 4, HandSize: 7})
	bad.BoneLen = 20
	if err := bad.Start(); err != ErrNotEnoughTiles {
		t.Errorf("Start with short boneyard: err = %v, want ErrNotEnoughTiles", err)
	}
}

// TestStartDeterministic verifies the same seed deals identical hands.
func TestStartDeterministic(t *testing.T) {
	g1 := NewGame(99, DefaultTableRules())
	g2 := NewGame(99, DefaultTableRules())
	if err := g1.Start(); err != nil {
		t.Fatalf("Start g1: %v", err)
	}
	if err := g2.Start(); err != nil {
		t.Fatalf("Start g2: %v", err)
	}
	if g1.Players != g2.Players {
		t.Error("same seed produced different hands")
	}
	if g1.CurrentPlayer != g2.CurrentPlayer {
		t.Error("same seed produced different starters")
	}
}

// TestStartTwiceRejected verifies the waiting → playing transition is one-way.
func TestStartTwiceRejected(t *testing.T) {
	g := NewGame(42, DefaultTableRules())
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Start(); err != ErrAlreadyStarted {
		t.Errorf("second Start: err = %v, want ErrAlreadyStarted", err)
	}
}

// TestFindStartingSeatHighestDouble verifies the 6-6 holder starts.
func TestFindStartingSeatHighestDouble(t *testing.T) {
	g := playingState(
		[]Tile{NewTile(1, 2), NewTile(3, 3)},
		[]Tile{NewTile(0, 4)},
		[]Tile{NewTile(6, 6), NewTile(0, 0)},
		[]Tile{NewTile(5, 5)},
	)
	if g.CurrentPlayer != 2 {
		t.Errorf("starter = %d, want 2 (6-6 holder)", g.CurrentPlayer)
	}
	if !g.Opening.SameTile(NewTile(6, 6)) {
		t.Errorf("opening tile = %s, want 6-6", g.Opening)
	}
}

// TestFindStartingSeatNoDoubles verifies the highest pip-sum fallback.
func TestFindStartingSeatNoDoubles(t *testing.T) {
	g := playingState(
		[]Tile{NewTile(1, 2)},
		[]Tile{NewTile(5, 6), NewTile(0, 3)},
		[]Tile{NewTile(2, 4)},
	)
	if g.CurrentPlayer != 1 {
		t.Errorf("starter = %d, want 1 (5-6 holder)", g.CurrentPlayer)
	}
	if !g.Opening.SameTile(NewTile(5, 6)) {
		t.Errorf("opening tile = %s, want 5-6", g.Opening)
	}
}

// TestSnapshotRoundTrip verifies Save/Restore are exact value copies.
func TestSnapshotRoundTrip(t *testing.T) {
	g := NewGame(11, DefaultTableRules())
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := g.Save()

	starter := g.CurrentPlayer
	opening := g.Opening
	if err := g.PlayTile(starter, opening, SideAuto); err != nil {
		t.Fatalf("PlayTile: %v", err)
	}
	if g.Save() == snap {
		t.Fatal("state unchanged after an accepted play")
	}

	g.Restore(snap)
	if g.Save() != snap {
		t.Error("Restore did not reproduce the snapshot")
	}
}
