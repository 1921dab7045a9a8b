// Package preferences holds the nightlife preference profile and the rules for
// merging partially extracted updates into it turn over turn.
package preferences

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Gender is the single-valued gender slot.
type Gender string

const (
	GenderWoman Gender = "Woman"
	GenderMan   Gender = "Man"
	GenderOther Gender = "Other"
)

// Budget is one of the four ordered spend buckets.
type Budget string

const (
	BudgetUpTo30  Budget = "Up to £30"
	Budget30To60  Budget = "£30-60"
	Budget60To100 Budget = "£60-100"
	Budget100Plus Budget = "£100+"
)

// maxSetSelection caps the music and vibe sets.
const maxSetSelection = 3

// Option catalogues offered to the user in the onboarding and missing-slot prompts.
var (
	Genders       = []Gender{GenderWoman, GenderMan, GenderOther}
	BudgetOptions = []Budget{BudgetUpTo30, Budget30To60, Budget60To100, Budget100Plus}
	MusicOptions  = []string{
		"House",
		"Deep House / Afro House",
		"Commercial",
		"Hip-Hop / Rap",
		"Reggaeton",
		"Tech House",
		"Techno",
		"EDM",
		"Big Room",
		"80s",
		"Bass Music",
	}
	VibeOptions = []string{"High-end", "Exclusive", "Doesn't matter", "Rave"}
)

// Profile is a user's stored preference vector. Empty values mean the slot has
// not been collected yet.
type Profile struct {
	Gender           Gender   `json:"gender"`
	MusicPreferences []string `json:"music_preferences"`
	Budget           Budget   `json:"budget"`
	Vibe             []string `json:"vibe"`
}

// Partial is the raw output of preference extraction for a single message.
// Values are free-form and canonicalized during Normalize.
type Partial struct {
	Gender           string   `json:"gender"`
	MusicPreferences []string `json:"music_preferences"`
	Budget           string   `json:"budget"`
	Vibe             []string `json:"vibe"`
}

// IsEmpty reports whether the extraction produced nothing usable.
func (p Partial) IsEmpty() bool {
	return strings.TrimSpace(p.Gender) == "" && len(p.MusicPreferences) == 0 &&
		strings.TrimSpace(p.Budget) == "" && len(p.Vibe) == 0
}

// New returns an empty profile with non-nil sets.
func New() Profile {
	return Profile{MusicPreferences: []string{}, Vibe: []string{}}
}

// Normalize merges an extracted partial into the stored profile. A non-empty
// extracted field replaces the stored one; empty fields keep the stored value.
func Normalize(existing Profile, extracted Partial) Profile {
	out := Profile{
		Gender:           existing.Gender,
		MusicPreferences: existing.MusicPreferences,
		Budget:           existing.Budget,
		Vibe:             existing.Vibe,
	}
	if g := CanonicalGender(extracted.Gender); g != "" {
		out.Gender = g
	}
	if music := CanonicalMusic(extracted.MusicPreferences); len(music) > 0 {
		out.MusicPreferences = music
	}
	if b := BucketFor(extracted.Budget); b != "" {
		out.Budget = b
	}
	if vibe := CanonicalVibe(extracted.Vibe); len(vibe) > 0 {
		out.Vibe = vibe
	}
	if out.MusicPreferences == nil {
		out.MusicPreferences = []string{}
	}
	if out.Vibe == nil {
		out.Vibe = []string{}
	}
	return out
}

// Complete reports whether every required slot is filled.
func Complete(p Profile) bool {
	return len(MissingSlots(p)) == 0
}

// Fingerprint is a stable hash of the canonical profile. Two profiles with the
// same slot values in any set order share a fingerprint.
func Fingerprint(p Profile) string {
	music := append([]string(nil), p.MusicPreferences...)
	vibe := append([]string(nil), p.Vibe...)
	sort.Strings(music)
	sort.Strings(vibe)

	var b strings.Builder
	b.WriteString(string(p.Gender))
	b.WriteByte('|')
	b.WriteString(strings.Join(music, ","))
	b.WriteByte('|')
	b.WriteString(string(p.Budget))
	b.WriteByte('|')
	b.WriteString(strings.Join(vibe, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// Equal compares two profiles slot by slot, treating set order as irrelevant.
func Equal(a, b Profile) bool {
	return Fingerprint(a) == Fingerprint(b)
}
