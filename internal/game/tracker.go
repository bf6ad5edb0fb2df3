// tracker.go — Bridge between engine tiles and the UUID-identified wire form.
package game

import (
	"github.com/google/uuid"

	"github.com/alejandrejorge-design/domino-domination-online/engine"
	"github.com/alejandrejorge-design/domino-domination-online/internal/models"
)

// TileTracker assigns a stable UUID to every tile of the set so clients can
// reference tiles without seeing the engine's packed representation.
// Identities persist for the lifetime of one game.
type TileTracker struct {
	ids      map[engine.Tile]uuid.UUID
	registry map[uuid.UUID]engine.Tile
}

// newTileTracker mints identities for the full double-six set.
func newTileTracker() *TileTracker {
	tr := &TileTracker{
		ids:      make(map[engine.Tile]uuid.UUID, engine.SetSize),
		registry: make(map[uuid.UUID]engine.Tile, engine.SetSize),
	}
	for _, t := range engine.TileSet() {
		id := uuid.New()
		tr.ids[t] = id
		tr.registry[id] = t
	}
	return tr
}

// IDOf returns the UUID for a tile, orientation-independent.
func (tr *TileTracker) IDOf(t engine.Tile) uuid.UUID {
	return tr.ids[t.Canonical()]
}

// TileOf resolves a client-supplied tile id.
func (tr *TileTracker) TileOf(id uuid.UUID) (engine.Tile, bool) {
	t, ok := tr.registry[id]
	return t, ok
}

// tileDTO converts an engine tile to its wire form, preserving orientation.
func (tr *TileTracker) tileDTO(t engine.Tile) models.Tile {
	return models.Tile{
		ID:       tr.IDOf(t),
		Left:     int(t.Left()),
		Right:    int(t.Right()),
		IsDouble: t.IsDouble(),
	}
}

// handDTO converts a full hand.
func (tr *TileTracker) handDTO(hand []engine.Tile) []models.Tile {
	out := make([]models.Tile, len(hand))
	for i, t := range hand {
		out[i] = tr.tileDTO(t)
	}
	return out
}

// placedDTO converts a placed tile with its render placement.
func (tr *TileTracker) placedDTO(p engine.PlacedTile) models.PlacedTile {
	return models.PlacedTile{
		Tile:          tr.tileDTO(p.Tile),
		X:             p.X,
		Y:             p.Y,
		Rotation:      p.Rotation,
		Side:          p.Side.String(),
		Direction:     p.Dir.String(),
		IsCornerTurn:  p.CornerTurn,
		ConnectionPip: int(p.Connection),
	}
}

// chainDTO converts the placed-tile sequence in chain order.
func (tr *TileTracker) chainDTO(chain []engine.PlacedTile) []models.PlacedTile {
	out := make([]models.PlacedTile, len(chain))
	for i, p := range chain {
		out[i] = tr.placedDTO(p)
	}
	return out
}

// sideFromString parses a client-supplied side choice.
func sideFromString(s string) engine.Side {
	switch s {
	case "left":
		return engine.SideLeft
	case "right":
		return engine.SideRight
	default:
		return engine.SideAuto
	}
}
