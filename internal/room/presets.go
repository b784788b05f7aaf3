// internal/room/presets.go
package room

// StakesPreset is a named blind/buy-in configuration offered to room
// creators. Presets are static read-only configuration; creators may also
// supply custom stakes as long as they satisfy validateStakes.
type StakesPreset struct {
	Name   string `json:"name"`
	Stakes Stakes `json:"stakes"`
}

// StakesPresets returns the built-in stakes table, ordered from micro to
// high. The slice is freshly allocated so callers can't mutate the presets.
func StakesPresets() []StakesPreset {
	return []StakesPreset{
		{Name: "micro", Stakes: Stakes{SmallBlind: 1, BigBlind: 2, MinBuyIn: 40, MaxBuyIn: 200}},
		{Name: "low", Stakes: Stakes{SmallBlind: 5, BigBlind: 10, MinBuyIn: 200, MaxBuyIn: 1000}},
		{Name: "mid", Stakes: Stakes{SmallBlind: 25, BigBlind: 50, MinBuyIn: 1000, MaxBuyIn: 5000}},
		{Name: "high", Stakes: Stakes{SmallBlind: 100, BigBlind: 200, MinBuyIn: 4000, MaxBuyIn: 20000}},
	}
}

// Variants returns the supported game types.
func Variants() []Variant {
	return []Variant{VariantTexasHoldem, VariantOmaha, VariantOmahaHiLo, VariantSevenCardStud}
}
