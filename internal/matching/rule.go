// Package matching evaluates a preference profile against an ordered,
// first-match rule table and returns the venue list of the winning rule.
package matching

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wolfman30/nightlife-concierge/internal/preferences"
)

// musicMatcher is the music conjunct of a rule, selected at load time.
type musicMatcher interface {
	matches(tags []string) bool
	tags() []string
}

// groupedMusic needs at least one hit in each group.
type groupedMusic struct {
	groupA map[string]struct{}
	groupB map[string]struct{}
	all    []string
}

func (g groupedMusic) matches(tags []string) bool {
	return anyIn(tags, g.groupA) && anyIn(tags, g.groupB)
}

func (g groupedMusic) tags() []string { return g.all }

// flatMusic needs one hit anywhere in the combined pool of group_a, group_b
// and the rule's own list.
type flatMusic struct {
	pool map[string]struct{}
	all  []string
}

func (f flatMusic) matches(tags []string) bool {
	return anyIn(tags, f.pool)
}

func (f flatMusic) tags() []string { return f.all }

// MusicPredicate is the decoded music_preferences clause. In rule files it is
// either an object with group_a, group_b and match_mode or a flat list.
type MusicPredicate struct {
	GroupA    []string `json:"group_a,omitempty"`
	GroupB    []string `json:"group_b,omitempty"`
	MatchMode bool     `json:"match_mode,omitempty"`
	List      []string `json:"-"`
}

// UnmarshalJSON accepts both the object and the flat-list shape.
func (m *MusicPredicate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("music_preferences list: %w", err)
		}
		*m = MusicPredicate{List: list}
		return nil
	}
	type plain MusicPredicate
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("music_preferences object: %w", err)
	}
	*m = MusicPredicate(p)
	return nil
}

// MarshalJSON writes the flat-list shape when no groups are declared.
func (m MusicPredicate) MarshalJSON() ([]byte, error) {
	if m.GroupA == nil && m.GroupB == nil {
		return json.Marshal(m.List)
	}
	type plain MusicPredicate
	return json.Marshal(plain(m))
}

// Grouped reports whether the clause uses grouped mode.
func (m MusicPredicate) Grouped() bool {
	return m.GroupA != nil && m.GroupB != nil && m.MatchMode
}

func (m MusicPredicate) compile() musicMatcher {
	all := make([]string, 0, len(m.GroupA)+len(m.GroupB)+len(m.List))
	all = append(all, m.GroupA...)
	all = append(all, m.GroupB...)
	all = append(all, m.List...)
	if m.Grouped() {
		return groupedMusic{groupA: toSet(m.GroupA), groupB: toSet(m.GroupB), all: all}
	}
	return flatMusic{pool: toSet(all), all: all}
}

// Preferences is the predicate half of a rule.
type Preferences struct {
	Music  MusicPredicate `json:"music_preferences"`
	Budget string         `json:"budget"`
	Vibe   []string       `json:"vibe"`
	Gender []string       `json:"gender"`
}

// Rule maps a predicate to an ordered club list. Club order is the ranking.
type Rule struct {
	Name        string      `json:"name,omitempty"`
	Preferences Preferences `json:"preferences"`
	Clubs       []string    `json:"clubs"`

	music  musicMatcher
	vibe   map[string]struct{}
	gender map[string]struct{}
}

func (r *Rule) compile() {
	r.music = r.Preferences.Music.compile()
	r.vibe = toSet(r.Preferences.Vibe)
	r.gender = toSet(r.Preferences.Gender)
}

// matches reports whether all four conjuncts hold for the profile. Cheap
// checks run first so evaluation short-circuits. The rule must be compiled.
func (r *Rule) matches(p preferences.Profile) bool {
	if string(p.Budget) != r.Preferences.Budget {
		return false
	}
	if _, ok := r.gender[string(p.Gender)]; !ok {
		return false
	}
	if !anyIn(p.Vibe, r.vibe) {
		return false
	}
	return r.music.matches(p.MusicPreferences)
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func anyIn(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
