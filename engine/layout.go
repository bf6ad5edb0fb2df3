package engine

// Chain layout: maps the ordered sequence of plays into 2-D placements for
// rendering. Purely geometric; legality is the rules engine's problem.
//
// Each chain end owns an independent cursor. The right end grows east from
// the origin, the left end grows west, and each cursor performs its own
// corner turns against the shared bounds. Reconstructing a layout for an
// existing chain means calling Reset and replaying every placement in order.

// Tile footprint in layout units, matching the reference client's rendering.
const (
	TileWidth    = 64
	TileHeight   = 128
	TileSpacing  = 8
	cornerMargin = 20
)

// Direction is a compass direction of chain growth.
type Direction uint8

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	}
	return "?"
}

// horizontal reports whether the direction runs along the x axis.
func (d Direction) horizontal() bool { return d == East || d == West }

// LayoutBounds describes the area the chain may occupy.
type LayoutBounds struct {
	Width   int
	Height  int
	Padding int
}

// DefaultLayoutBounds matches the reference client's board.
func DefaultLayoutBounds() LayoutBounds {
	return LayoutBounds{Width: 1200, Height: 600, Padding: 40}
}

// Position is the computed placement for a single tile.
type Position struct {
	X          int
	Y          int
	Rotation   int // degrees: 0 or 90
	Dir        Direction
	CornerTurn bool
}

// layoutCursor tracks one chain end's position and growth direction.
type layoutCursor struct {
	X, Y int
	Dir  Direction
}

// LayoutEngine is the mutable placement context. It is a plain value type;
// embed or copy it freely. Mutated only by successive NextPosition calls in
// chain order.
type LayoutEngine struct {
	Bounds   LayoutBounds
	Cursors  [2]layoutCursor // indexed by SideLeft-1 / SideRight-1
	ChainLen uint8
	seeded   bool
}

// NewLayoutEngine returns an engine whose cursors start at the bounds center.
func NewLayoutEngine(b LayoutBounds) LayoutEngine {
	e := LayoutEngine{Bounds: b}
	e.Reset()
	return e
}

// Reset returns the engine to its initial state: both cursors centered,
// left cursor growing west, right cursor growing east.
func (e *LayoutEngine) Reset() {
	cx, cy := e.Bounds.Width/2, e.Bounds.Height/2
	e.Cursors[0] = layoutCursor{X: cx, Y: cy, Dir: West}
	e.Cursors[1] = layoutCursor{X: cx, Y: cy, Dir: East}
	e.ChainLen = 0
	e.seeded = false
}

// NextPosition computes the placement for the next tile appended to the
// given end and advances that end's cursor. The first call seeds both
// cursors at the origin regardless of side.
func (e *LayoutEngine) NextPosition(t Tile, side Side) Position {
	if !e.seeded {
		e.seeded = true
		e.ChainLen++
		c := e.Cursors[1]
		return Position{X: c.X, Y: c.Y, Rotation: 0, Dir: East}
	}

	cur := e.cursor(side)
	dx, dy := step(cur.Dir)
	nx, ny := cur.X+dx, cur.Y+dy

	if e.outOfBounds(nx, ny) {
		newDir := e.turnDirection(cur.Dir, nx, ny)
		dx, dy = step(newDir)
		cur.X += dx
		cur.Y += dy
		cur.Dir = newDir
		e.ChainLen++
		return Position{
			X:          cur.X,
			Y:          cur.Y,
			Rotation:   rotationFor(t, newDir),
			Dir:        newDir,
			CornerTurn: true,
		}
	}

	cur.X, cur.Y = nx, ny
	e.ChainLen++
	return Position{
		X:        cur.X,
		Y:        cur.Y,
		Rotation: rotationFor(t, cur.Dir),
		Dir:      cur.Dir,
	}
}

// cursor returns the mutable cursor for a chain end. SideAuto is treated as
// the right end; callers resolve sides before layout.
func (e *LayoutEngine) cursor(side Side) *layoutCursor {
	if side == SideLeft {
		return &e.Cursors[0]
	}
	return &e.Cursors[1]
}

// step returns the cursor advance for one tile footprint plus spacing.
func step(d Direction) (dx, dy int) {
	switch d {
	case East:
		return TileWidth + TileSpacing, 0
	case West:
		return -(TileWidth + TileSpacing), 0
	case North:
		return 0, -(TileHeight + TileSpacing)
	default: // South
		return 0, TileHeight + TileSpacing
	}
}

// rotationFor returns the tile rotation in degrees. Doubles lie crosswise to
// the chain, so the usual rotation flips for them.
func rotationFor(t Tile, d Direction) int {
	if d.horizontal() {
		if t.IsDouble() {
			return 90
		}
		return 0
	}
	if t.IsDouble() {
		return 0
	}
	return 90
}

// outOfBounds reports whether a position crosses the turn margin on any side.
func (e *LayoutEngine) outOfBounds(x, y int) bool {
	xm := TileWidth + cornerMargin
	ym := TileHeight + cornerMargin
	return x <= xm || x >= e.Bounds.Width-xm ||
		y <= ym || y >= e.Bounds.Height-ym
}

// turnDirection picks the perpendicular direction to adopt after hitting a
// boundary, based on which boundary was approached and the prior heading.
func (e *LayoutEngine) turnDirection(dir Direction, x, y int) Direction {
	xm := TileWidth + cornerMargin
	ym := TileHeight + cornerMargin
	switch {
	case x <= xm: // left boundary
		if dir == North {
			return East
		}
		return North
	case x >= e.Bounds.Width-xm: // right boundary
		if dir == North {
			return West
		}
		return South
	case y <= ym: // top boundary
		if dir == East {
			return South
		}
		return West
	default: // bottom boundary
		if dir == East {
			return North
		}
		return East
	}
}
