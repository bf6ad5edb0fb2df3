package engine

// TableRules holds configurable game rule settings.
type TableRules struct {
	NumPlayers uint8 // number of seated players (2–4); 0 treated as 4
	HandSize   uint8 // tiles dealt per player; 0 treated as 7
}

// DefaultTableRules returns the standard four-player block game setup.
func DefaultTableRules() TableRules {
	return TableRules{
		NumPlayers: 4,
		HandSize:   7,
	}
}

// numPlayers returns the effective number of players, treating 0 as 4.
func (r *TableRules) numPlayers() uint8 {
	if r.NumPlayers == 0 {
		return 4
	}
	return r.NumPlayers
}

// handSize returns the effective hand size, treating 0 as 7.
func (r *TableRules) handSize() uint8 {
	if r.HandSize == 0 {
		return 7
	}
	return r.HandSize
}
