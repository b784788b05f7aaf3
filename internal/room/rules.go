// internal/room/rules.go
package room

import "fmt"

// RuleSet defines per-room rule overrides layered on top of variant defaults.
// The key set is closed: unknown keys in an override map are ignored, known
// keys are validated against their expected type.
type RuleSet struct {
	TurnTimerSec    int  `json:"turnTimerSec"`    // seconds a player has to act; 0 => no limit
	AnteChips       int  `json:"anteChips"`       // forced ante posted by every seat, 0 => none
	AllowStraddle   bool `json:"allowStraddle"`   // allow an optional live straddle under the gun
	RunItTwice      bool `json:"runItTwice"`      // deal remaining streets twice when all-in
	ShowFoldedHands bool `json:"showFoldedHands"` // reveal mucked hands at showdown
	RebuyLimit      int  `json:"rebuyLimit"`      // rebuys allowed per session; 0 => unlimited
}

// DefaultRules returns the system-wide default rule set for a variant.
// Custom overrides from the room spec are merged on top of this.
func DefaultRules(v Variant) RuleSet {
	rules := RuleSet{
		TurnTimerSec:    30,
		AnteChips:       0,
		AllowStraddle:   false,
		RunItTwice:      false,
		ShowFoldedHands: false,
		RebuyLimit:      0,
	}
	// Stud plays slower and has a bring-in style ante by convention.
	if v == VariantSevenCardStud {
		rules.TurnTimerSec = 45
		rules.AnteChips = 1
	}
	return rules
}

// Update merges a partial override map onto the rule set. Keys not present in
// the closed set are ignored; present keys with the wrong type fail the whole
// update so a bad override never half-applies.
func (rules *RuleSet) Update(overrides map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := overrides[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string) error {
		val, exists := overrides[key]
		if !exists || val == nil {
			return nil
		}
		// JSON numbers decode as float64; accept int for direct callers.
		switch n := val.(type) {
		case float64:
			*field = int(n)
		case int:
			*field = n
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if *field < 0 {
			return fmt.Errorf("%s must be non-negative", key)
		}
		return nil
	}

	updated := *rules
	if err := assignInt(&updated.TurnTimerSec, "turnTimerSec"); err != nil {
		return err
	}
	if err := assignInt(&updated.AnteChips, "anteChips"); err != nil {
		return err
	}
	if err := assignBool(&updated.AllowStraddle, "allowStraddle"); err != nil {
		return err
	}
	if err := assignBool(&updated.RunItTwice, "runItTwice"); err != nil {
		return err
	}
	if err := assignBool(&updated.ShowFoldedHands, "showFoldedHands"); err != nil {
		return err
	}
	if err := assignInt(&updated.RebuyLimit, "rebuyLimit"); err != nil {
		return err
	}
	*rules = updated
	return nil
}

// MergeRules layers a partial override map over the variant's defaults and
// returns the resulting rule set.
func MergeRules(v Variant, overrides map[string]interface{}) (RuleSet, error) {
	rules := DefaultRules(v)
	if len(overrides) == 0 {
		return rules, nil
	}
	err := rules.Update(overrides)
	return rules, err
}
