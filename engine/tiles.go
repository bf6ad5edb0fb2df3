package engine

// Pip bounds for the double-six set.
const (
	MinPip uint8 = 0
	MaxPip uint8 = 6
)

const (
	// SetSize is the number of tiles in a double-six set: one tile per
	// unordered pip pair (a,b) with 0 <= a <= b <= 6.
	SetSize = 28
)

// Tile is a packed uint8: upper 4 bits = left pips, lower 4 bits = right pips.
// Identity is the unordered pip pair; use Canonical before comparing tiles
// that may have been reoriented.
type Tile uint8

// EmptyTile represents the absence of a tile.
const EmptyTile Tile = 0xFF

// NewTile constructs a Tile from left and right pip counts.
func NewTile(left, right uint8) Tile {
	return Tile((left << 4) | (right & 0x0F))
}

// Left returns the left pip count (upper 4 bits).
func (t Tile) Left() uint8 { return uint8(t) >> 4 }

// Right returns the right pip count (lower 4 bits).
func (t Tile) Right() uint8 { return uint8(t) & 0x0F }

// IsDouble reports whether both halves carry the same pip count.
func (t Tile) IsDouble() bool { return t.Left() == t.Right() }

// PipSum returns the total pip count across both halves.
func (t Tile) PipSum() uint8 { return t.Left() + t.Right() }

// Reversed returns the tile with its halves swapped.
func (t Tile) Reversed() Tile { return NewTile(t.Right(), t.Left()) }

// Canonical returns the identity orientation: smaller pip count on the left.
func (t Tile) Canonical() Tile {
	if t.Left() > t.Right() {
		return t.Reversed()
	}
	return t
}

// SameTile reports whether two tiles are the same physical piece,
// ignoring orientation.
func (t Tile) SameTile(other Tile) bool {
	return t.Canonical() == other.Canonical()
}

// Matches reports whether either half of the tile carries the given pip count.
func (t Tile) Matches(pip uint8) bool {
	return t.Left() == pip || t.Right() == pip
}

// OtherSide returns the pip count opposite the half matching pip.
// For a double both halves are equal, so the result is pip itself.
// Callers must check Matches first; a non-matching pip returns the right half.
func (t Tile) OtherSide(pip uint8) uint8 {
	if t.Right() == pip {
		return t.Left()
	}
	return t.Right()
}

func (t Tile) String() string {
	if t == EmptyTile {
		return "-"
	}
	return string([]byte{'0' + t.Left(), '-', '0' + t.Right()})
}

// TileSet returns the canonical 28-tile double-six set, one tile per
// unordered pip pair, in ascending order.
func TileSet() [SetSize]Tile {
	var set [SetSize]Tile
	idx := 0
	for left := MinPip; left <= MaxPip; left++ {
		for right := left; right <= MaxPip; right++ {
			set[idx] = NewTile(left, right)
			idx++
		}
	}
	return set
}
