package preferences

// Slot names one required field of the profile.
type Slot string

const (
	SlotGender Slot = "gender"
	SlotMusic  Slot = "music_preferences"
	SlotBudget Slot = "budget"
	SlotVibe   Slot = "vibe"
)

// Label is the user-facing name of the slot.
func (s Slot) Label() string {
	switch s {
	case SlotGender:
		return "gender"
	case SlotMusic:
		return "music preferences"
	case SlotBudget:
		return "budget"
	case SlotVibe:
		return "vibe"
	default:
		return string(s)
	}
}

// Options lists the catalogue values the user can pick for the slot.
func (s Slot) Options() []string {
	switch s {
	case SlotGender:
		out := make([]string, len(Genders))
		for i, g := range Genders {
			out[i] = string(g)
		}
		return out
	case SlotMusic:
		return append([]string(nil), MusicOptions...)
	case SlotBudget:
		out := make([]string, len(BudgetOptions))
		for i, b := range BudgetOptions {
			out[i] = string(b)
		}
		return out
	case SlotVibe:
		return append([]string(nil), VibeOptions...)
	default:
		return nil
	}
}

// MissingSlots returns the empty slots in the fixed order gender, music,
// budget, vibe.
func MissingSlots(p Profile) []Slot {
	var missing []Slot
	if p.Gender == "" {
		missing = append(missing, SlotGender)
	}
	if len(p.MusicPreferences) == 0 {
		missing = append(missing, SlotMusic)
	}
	if p.Budget == "" {
		missing = append(missing, SlotBudget)
	}
	if len(p.Vibe) == 0 {
		missing = append(missing, SlotVibe)
	}
	return missing
}
