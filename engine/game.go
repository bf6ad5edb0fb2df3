// Package engine implements the block dominoes rules and turn state machine.
//
// The package is pure computation: a flat, self-contained GameState value
// type with no external dependencies, suitable for embedding in a local
// session or rehydrating from an external store. All randomness flows from
// the seed carried in the state, so a deal is reproducible.
package engine

const (
	MaxPlayers  = 4
	MaxHandSize = 7
)

// Side identifies which chain end a tile is played on.
type Side uint8

const (
	SideAuto  Side = iota // engine picks the only matching end
	SideLeft              // prepend to the left end
	SideRight             // append to the right end
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	}
	return "auto"
}

// Phase is the lifecycle stage of a round.
type Phase uint8

const (
	PhaseWaiting Phase = iota
	PhasePlaying
	PhaseFinished
)

// OpenEnd marks a chain end with no exposed pip value yet.
const OpenEnd int8 = -1

// NoWinner marks a round with no winning seat (pre-finish or stalemate).
const NoWinner int8 = -1

// PlayerState holds one player's hand. Hands only shrink: tiles leave when
// played and are never regained mid-round.
type PlayerState struct {
	Hand    [MaxHandSize]Tile
	HandLen uint8
}

// PlacedTile is a tile fixed on the board. The embedded tile is stored in
// play orientation: reading the chain left to right, Left() faces the left
// end. Append-only; never mutated after placement.
type PlacedTile struct {
	Tile       Tile
	X          int
	Y          int
	Rotation   int
	Side       Side // end the tile was appended to
	Dir        Direction
	CornerTurn bool
	Connection uint8 // pip value joining the existing chain
}

// GameState holds the complete, self-contained state of one domino round.
// It is a flat value type: plain struct copies snapshot the whole game.
type GameState struct {
	Players       [MaxPlayers]PlayerState
	Boneyard      [SetSize]Tile
	BoneLen       uint8
	Chain         [SetSize]PlacedTile
	ChainLen      uint8
	LeftEnd       int8 // OpenEnd before the first play
	RightEnd      int8
	CurrentPlayer uint8
	TurnNumber    uint16
	Flags         uint16
	Winner        int8 // seat of the round winner, NoWinner otherwise
	Opening       Tile // required first play; EmptyTile once the chain exists
	AwaitingSide  Tile // tile parked pending a side choice; EmptyTile if none
	RNG           uint64
	Rules         TableRules
	Layout        LayoutEngine
}

// Flags bitfield.
const (
	FlagStarted   uint16 = 1 << 0
	FlagFinished  uint16 = 1 << 1
	FlagStalemate uint16 = 1 << 2
)

// Phase derives the lifecycle stage from the flags. Transitions are
// monotonic: waiting → playing → finished.
func (g *GameState) Phase() Phase {
	switch {
	case g.Flags&FlagFinished != 0:
		return PhaseFinished
	case g.Flags&FlagStarted != 0:
		return PhasePlaying
	default:
		return PhaseWaiting
	}
}

// IsStalemate reports whether the round ended with every player blocked.
func (g *GameState) IsStalemate() bool { return g.Flags&FlagStalemate != 0 }

// xorshift64 RNG — inline, no interface.

func (g *GameState) nextRand() uint64 {
	x := g.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.RNG = x
	return x
}

// randN returns a random number in [0, n).
func (g *GameState) randN(n uint64) uint64 {
	return g.nextRand() % n
}

// NewGame initializes a GameState with the given seed and rules. The full
// tile set sits in the boneyard, unshuffled and undealt, phase waiting.
func NewGame(seed uint64, rules TableRules) GameState {
	var g GameState
	g.RNG = seed
	if g.RNG == 0 {
		g.RNG = 1 // xorshift can't start at 0
	}
	g.Rules = rules
	g.LeftEnd = OpenEnd
	g.RightEnd = OpenEnd
	g.Winner = NoWinner
	g.Opening = EmptyTile
	g.AwaitingSide = EmptyTile
	g.Layout = NewLayoutEngine(DefaultLayoutBounds())

	set := TileSet()
	copy(g.Boneyard[:], set[:])
	g.BoneLen = SetSize
	return g
}

// Start performs the waiting → playing transition: shuffle, deal, determine
// the starting seat and its required opening tile.
func (g *GameState) Start() error {
	if g.Phase() != PhaseWaiting {
		return ErrAlreadyStarted
	}
	n := g.Rules.numPlayers()
	hs := g.Rules.handSize()
	if uint16(n)*uint16(hs) > uint16(g.BoneLen) {
		return ErrNotEnoughTiles
	}

	// Fisher-Yates shuffle of the boneyard.
	for i := int(g.BoneLen) - 1; i > 0; i-- {
		j := int(g.randN(uint64(i + 1)))
		g.Boneyard[i], g.Boneyard[j] = g.Boneyard[j], g.Boneyard[i]
	}

	// Partition into contiguous slices of handSize; remainder stays in the
	// boneyard (empty for the 4x7 configuration).
	for p := uint8(0); p < n; p++ {
		for c := uint8(0); c < hs; c++ {
			g.BoneLen--
			g.Players[p].Hand[c] = g.Boneyard[g.BoneLen]
			g.Players[p].HandLen++
		}
	}

	seat, opening := g.findStartingSeat()
	g.CurrentPlayer = seat
	g.Opening = opening
	g.Flags |= FlagStarted
	return nil
}

// findStartingSeat scans all hands for the highest double. The holder starts
// and must open with that double. If no player holds a double, the holder of
// the highest pip-sum tile starts and opens with it. Ties resolve to the
// first seat encountered (stable scan order).
func (g *GameState) findStartingSeat() (uint8, Tile) {
	n := g.Rules.numPlayers()

	bestDouble := int8(-1)
	doubleSeat := uint8(0)
	var doubleTile Tile = EmptyTile
	bestSum := int8(-1)
	sumSeat := uint8(0)
	var sumTile Tile = EmptyTile

	for p := uint8(0); p < n; p++ {
		for i := uint8(0); i < g.Players[p].HandLen; i++ {
			t := g.Players[p].Hand[i]
			if t.IsDouble() && int8(t.Left()) > bestDouble {
				bestDouble = int8(t.Left())
				doubleSeat = p
				doubleTile = t
			}
			if int8(t.PipSum()) > bestSum {
				bestSum = int8(t.PipSum())
				sumSeat = p
				sumTile = t
			}
		}
	}

	if bestDouble >= 0 {
		return doubleSeat, doubleTile
	}
	return sumSeat, sumTile
}

// ComputeOpening returns the seat and tile required to open the round given
// the current hands. Exposed for adapters that rehydrate a pre-chain state
// from an external store.
func (g *GameState) ComputeOpening() (uint8, Tile) { return g.findStartingSeat() }

// NextPlayer returns the seat after current in the fixed cyclic turn order.
func (g *GameState) NextPlayer(current uint8) uint8 {
	return (current + 1) % g.Rules.numPlayers()
}

// HandOf returns a copy of a player's current hand.
func (g *GameState) HandOf(player uint8) []Tile {
	n := g.Players[player].HandLen
	out := make([]Tile, n)
	copy(out, g.Players[player].Hand[:n])
	return out
}

// ChainTiles returns a copy of the placed-tile sequence in left-to-right
// physical chain order.
func (g *GameState) ChainTiles() []PlacedTile {
	out := make([]PlacedTile, g.ChainLen)
	copy(out, g.Chain[:g.ChainLen])
	return out
}

// Snapshot is a complete value-copy of GameState. Saving and restoring are
// plain struct copies; rejected actions can be proven side-effect free by
// comparing snapshots.
type Snapshot GameState

// Save returns a snapshot of the current game state.
func (g *GameState) Save() Snapshot { return Snapshot(*g) }

// Restore replaces the game state with the given snapshot.
func (g *GameState) Restore(s Snapshot) { *g = GameState(s) }
