package engine

import "testing"

// wideBounds gives enough room that no corner turn triggers.
func wideBounds() LayoutBounds {
	return LayoutBounds{Width: 4000, Height: 2000, Padding: 40}
}

// TestLayoutMonotonicGrowth verifies right-side growth without boundaries:
// strictly increasing x, constant y, no rotation, no corner turns.
func TestLayoutMonotonicGrowth(t *testing.T) {
	e := NewLayoutEngine(wideBounds())
	tiles := []Tile{
		NewTile(0, 1), NewTile(1, 2), NewTile(2, 3), NewTile(3, 4),
		NewTile(4, 5), NewTile(5, 6), NewTile(0, 6), NewTile(0, 2),
		NewTile(1, 3), NewTile(2, 4),
	}

	prev := e.NextPosition(tiles[0], SideRight)
	if prev.X != 2000 || prev.Y != 1000 {
		t.Fatalf("first tile at (%d,%d), want bounds center (2000,1000)", prev.X, prev.Y)
	}
	if prev.Rotation != 0 || prev.Dir != East || prev.CornerTurn {
		t.Fatalf("first tile placement = %+v, want east, flat, no turn", prev)
	}

	for i, tile := range tiles[1:] {
		pos := e.NextPosition(tile, SideRight)
		if pos.X <= prev.X {
			t.Errorf("tile %d: x = %d, want > %d", i+1, pos.X, prev.X)
		}
		if pos.X-prev.X != TileWidth+TileSpacing {
			t.Errorf("tile %d: step = %d, want %d", i+1, pos.X-prev.X, TileWidth+TileSpacing)
		}
		if pos.Y != prev.Y {
			t.Errorf("tile %d: y = %d, want %d", i+1, pos.Y, prev.Y)
		}
		if pos.Rotation != 0 {
			t.Errorf("tile %d: rotation = %d, want 0", i+1, pos.Rotation)
		}
		if pos.CornerTurn {
			t.Errorf("tile %d: unexpected corner turn", i+1)
		}
		prev = pos
	}

	if e.ChainLen != uint8(len(tiles)) {
		t.Errorf("ChainLen = %d, want %d", e.ChainLen, len(tiles))
	}
}

// TestLayoutLeftGrowsWest verifies the left end has its own cursor growing
// the opposite way, so long chains never overlap.
func TestLayoutLeftGrowsWest(t *testing.T) {
	e := NewLayoutEngine(wideBounds())
	first := e.NextPosition(NewTile(3, 3), SideRight)

	left1 := e.NextPosition(NewTile(2, 3), SideLeft)
	if left1.X >= first.X {
		t.Errorf("left placement x = %d, want < %d", left1.X, first.X)
	}
	if left1.Dir != West {
		t.Errorf("left growth direction = %s, want west", left1.Dir)
	}

	right1 := e.NextPosition(NewTile(3, 5), SideRight)
	if right1.X <= first.X {
		t.Errorf("right placement x = %d, want > %d", right1.X, first.X)
	}

	left2 := e.NextPosition(NewTile(1, 2), SideLeft)
	if left2.X >= left1.X {
		t.Errorf("second left placement x = %d, want < %d", left2.X, left1.X)
	}
}

// TestLayoutDoubleRotation verifies doubles lie crosswise to the chain in
// both axes.
func TestLayoutDoubleRotation(t *testing.T) {
	e := NewLayoutEngine(wideBounds())
	e.NextPosition(NewTile(0, 1), SideRight)

	pos := e.NextPosition(NewTile(1, 1), SideRight)
	if pos.Rotation != 90 {
		t.Errorf("double on horizontal growth: rotation = %d, want 90", pos.Rotation)
	}

	// Force a vertical cursor and check the rule flips.
	e.Cursors[1].Dir = South
	pos = e.NextPosition(NewTile(2, 2), SideRight)
	if pos.Rotation != 0 {
		t.Errorf("double on vertical growth: rotation = %d, want 0", pos.Rotation)
	}
	pos = e.NextPosition(NewTile(2, 4), SideRight)
	if pos.Rotation != 90 {
		t.Errorf("non-double on vertical growth: rotation = %d, want 90", pos.Rotation)
	}
}

// TestLayoutCornerTurn verifies approaching the right boundary picks a
// perpendicular direction and flags the turn.
func TestLayoutCornerTurn(t *testing.T) {
	// Narrow but tall, so growth continues south after the turn.
	e := NewLayoutEngine(LayoutBounds{Width: 1200, Height: 2000, Padding: 40})
	e.NextPosition(NewTile(0, 1), SideRight)

	var turned *Position
	for i := 0; i < 20; i++ {
		pos := e.NextPosition(NewTile(1, 2), SideRight)
		if pos.CornerTurn {
			turned = &pos
			break
		}
		if pos.Dir != East {
			t.Fatalf("direction changed to %s without a corner turn", pos.Dir)
		}
	}
	if turned == nil {
		t.Fatal("no corner turn after 20 tiles in a 1200-wide board")
	}
	if turned.Dir != South {
		t.Errorf("turn direction = %s, want south at the right boundary", turned.Dir)
	}
	if turned.Rotation != 90 {
		t.Errorf("non-double after turning vertical: rotation = %d, want 90", turned.Rotation)
	}

	// Subsequent growth follows the new direction.
	next := e.NextPosition(NewTile(2, 3), SideRight)
	if next.Dir != South || next.CornerTurn {
		t.Errorf("post-turn placement = %+v, want continued south growth", next)
	}
	if next.Y <= turned.Y {
		t.Errorf("post-turn y = %d, want > %d", next.Y, turned.Y)
	}
}

// TestLayoutReset verifies replaying from scratch reproduces placements.
func TestLayoutReset(t *testing.T) {
	e := NewLayoutEngine(DefaultLayoutBounds())
	first := e.NextPosition(NewTile(6, 6), SideRight)
	second := e.NextPosition(NewTile(4, 6), SideRight)

	e.Reset()
	if e.ChainLen != 0 {
		t.Fatalf("ChainLen after Reset = %d, want 0", e.ChainLen)
	}
	if got := e.NextPosition(NewTile(6, 6), SideRight); got != first {
		t.Errorf("replayed first = %+v, want %+v", got, first)
	}
	if got := e.NextPosition(NewTile(4, 6), SideRight); got != second {
		t.Errorf("replayed second = %+v, want %+v", got, second)
	}
}
