package portfolio

// SectorMap is the static pair → sector assignment used for concentration
// limits. Unmapped pairs fall into DefaultSector; a sector without an
// explicit cap uses the DEFAULT cap. Read-only at run time.
type SectorMap struct {
	Pairs map[string]string
	Caps  map[string]int
}

const DefaultSector = "DEFAULT"

// DefaultSectorMap mirrors the basket the bot trades on Indodax.
func DefaultSectorMap() SectorMap {
	return SectorMap{
		Pairs: map[string]string{
			"DOGE/IDR": "MEME",
			"SHIB/IDR": "MEME",
			"PEPE/IDR": "MEME",
			"SOL/IDR":  "LAYER1",
			"ETH/IDR":  "LAYER1",
			"ADA/IDR":  "LAYER1",
			"POL/IDR":  "LAYER2",
			"OP/IDR":   "LAYER2",
			"FET/IDR":  "AI",
		},
		Caps: map[string]int{
			"MEME":        2,
			DefaultSector: 3,
		},
	}
}

// Resolve returns the sector label for a pair.
func (m SectorMap) Resolve(pair string) string {
	if sector, ok := m.Pairs[pair]; ok {
		return sector
	}
	return DefaultSector
}

// CapFor returns the open-position cap for a sector; fallback is used when
// neither the sector nor DEFAULT carries an explicit cap.
func (m SectorMap) CapFor(sector string, fallback int) int {
	if limit, ok := m.Caps[sector]; ok {
		return limit
	}
	if limit, ok := m.Caps[DefaultSector]; ok {
		return limit
	}
	return fallback
}
