package matching

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/nightlife-concierge/internal/preferences"
)

//go:embed rules/default.json
var defaultRules embed.FS

const defaultRulesPath = "rules/default.json"

// ErrInvalidRule is returned when a rule file fails validation.
var ErrInvalidRule = errors.New("matching: invalid rule")

// Format identifies the encoding of a rule file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type ruleFile struct {
	Rules []Rule `json:"rules"`
}

// Table is an ordered rule list. It is immutable once built and safe for
// concurrent use.
type Table struct {
	rules []Rule
}

// NewTable validates and compiles rules in the given order.
func NewTable(rules []Rule) (*Table, error) {
	compiled := make([]Rule, len(rules))
	for i, r := range rules {
		if err := validate(r); err != nil {
			return nil, fmt.Errorf("%w: rule %d (%s): %v", ErrInvalidRule, i, ruleLabel(r, i), err)
		}
		r.Clubs = append([]string(nil), r.Clubs...)
		r.compile()
		compiled[i] = r
	}
	return &Table{rules: compiled}, nil
}

// Match returns the clubs of the first rule satisfied by the profile, in the
// rule's authored order, or an empty slice when nothing matches. The caller
// owns the returned slice.
func (t *Table) Match(p preferences.Profile) []string {
	if t == nil {
		return []string{}
	}
	for i := range t.rules {
		if t.rules[i].matches(p) {
			return append([]string(nil), t.rules[i].Clubs...)
		}
	}
	return []string{}
}

// MatchRule is Match that also reports which rule fired.
func (t *Table) MatchRule(p preferences.Profile) (name string, clubs []string, ok bool) {
	if t == nil {
		return "", []string{}, false
	}
	for i := range t.rules {
		if t.rules[i].matches(p) {
			return ruleLabel(t.rules[i], i), append([]string(nil), t.rules[i].Clubs...), true
		}
	}
	return "", []string{}, false
}

// Len returns the number of rules.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Parse decodes and validates a rule file.
func Parse(data []byte, format Format) (*Table, error) {
	switch format {
	case FormatYAML:
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("matching: decode yaml: %w", err)
		}
		converted, err := json.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("matching: convert yaml: %w", err)
		}
		data = converted
	case FormatJSON, "":
	default:
		return nil, fmt.Errorf("matching: unsupported format %q", format)
	}

	var file ruleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("matching: decode rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("%w: rule file has no rules", ErrInvalidRule)
	}
	return NewTable(file.Rules)
}

// Load reads a rule file from disk. The format follows the file extension.
// An empty path loads the embedded default table.
func Load(path string) (*Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		data, err := defaultRules.ReadFile(defaultRulesPath)
		if err != nil {
			return nil, fmt.Errorf("matching: read default rules: %w", err)
		}
		return Parse(data, FormatJSON)
	}

	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("matching: read rules: %w", err)
	}
	return Parse(data, format)
}

// FormatForPath picks the rule file format from the path's extension.
func FormatForPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("matching: unsupported rule file extension %q", ext)
	}
}

func validate(r Rule) error {
	if !isBudget(r.Preferences.Budget) {
		return fmt.Errorf("budget %q is not a known bucket", r.Preferences.Budget)
	}
	if len(r.Preferences.Gender) == 0 {
		return errors.New("no genders")
	}
	if len(r.Preferences.Vibe) == 0 {
		return errors.New("no vibes")
	}
	m := r.Preferences.Music
	if len(m.GroupA)+len(m.GroupB)+len(m.List) == 0 {
		return errors.New("no music tags")
	}
	if m.Grouped() && (len(m.GroupA) == 0 || len(m.GroupB) == 0) {
		return errors.New("grouped music needs tags in both groups")
	}
	if len(r.Clubs) == 0 {
		return errors.New("no clubs")
	}
	return nil
}

func isBudget(value string) bool {
	for _, b := range preferences.BudgetOptions {
		if string(b) == value {
			return true
		}
	}
	return false
}

func ruleLabel(r Rule, index int) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("#%d", index+1)
}
