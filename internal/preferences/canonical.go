package preferences

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var genderAliases = map[string]Gender{
	"woman":      GenderWoman,
	"women":      GenderWoman,
	"female":     GenderWoman,
	"girl":       GenderWoman,
	"lady":       GenderWoman,
	"f":          GenderWoman,
	"man":        GenderMan,
	"men":        GenderMan,
	"male":       GenderMan,
	"guy":        GenderMan,
	"boy":        GenderMan,
	"m":          GenderMan,
	"other":      GenderOther,
	"non-binary": GenderOther,
	"nonbinary":  GenderOther,
	"nb":         GenderOther,
}

var musicAliases = map[string]string{
	"house":                   "House",
	"deep house":              "Deep House / Afro House",
	"afro house":              "Deep House / Afro House",
	"afro":                    "Deep House / Afro House",
	"afrohouse":               "Deep House / Afro House",
	"deep house / afro house": "Deep House / Afro House",
	"commercial":              "Commercial",
	"pop":                     "Commercial",
	"chart":                   "Commercial",
	"hip-hop":                 "Hip-Hop / Rap",
	"hip hop":                 "Hip-Hop / Rap",
	"hiphop":                  "Hip-Hop / Rap",
	"rap":                     "Hip-Hop / Rap",
	"hip-hop / rap":           "Hip-Hop / Rap",
	"r&b":                     "Hip-Hop / Rap",
	"reggaeton":               "Reggaeton",
	"latin":                   "Reggaeton",
	"tech house":              "Tech House",
	"techno":                  "Techno",
	"edm":                     "EDM",
	"big room":                "Big Room",
	"80s":                     "80s",
	"eighties":                "80s",
	"bass":                    "Bass Music",
	"bass music":              "Bass Music",
	"drum and bass":           "Bass Music",
	"dnb":                     "Bass Music",
	"dubstep":                 "Bass Music",
}

var vibeAliases = map[string]string{
	"high-end":        "High-end",
	"high end":        "High-end",
	"luxury":          "High-end",
	"upscale":         "High-end",
	"posh":            "High-end",
	"classy":          "High-end",
	"exclusive":       "Exclusive",
	"vip":             "Exclusive",
	"doesn't matter":  "Doesn't matter",
	"doesnt matter":   "Doesn't matter",
	"does not matter": "Doesn't matter",
	"don't mind":      "Doesn't matter",
	"dont mind":       "Doesn't matter",
	"any":             "Doesn't matter",
	"anything":        "Doesn't matter",
	"cheap":           "Doesn't matter",
	"rave":            "Rave",
	"raving":          "Rave",
	"underground":     "Rave",
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.ReplaceAll(tag, "’", "'")
	return strings.Join(strings.Fields(tag), " ")
}

// CanonicalGender maps a free-form gender onto the catalogue, or "" when unknown.
func CanonicalGender(raw string) Gender {
	return genderAliases[normalizeTag(raw)]
}

// CanonicalMusic maps extracted music tags onto MusicOptions, dropping unknown
// tags and duplicates and keeping at most three.
func CanonicalMusic(raw []string) []string {
	return canonicalSet(raw, musicAliases)
}

// CanonicalVibe maps extracted vibe tags onto VibeOptions, dropping unknown
// tags and duplicates and keeping at most three.
func CanonicalVibe(raw []string) []string {
	return canonicalSet(raw, vibeAliases)
}

func canonicalSet(raw []string, aliases map[string]string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, maxSetSelection)
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		canonical, ok := aliases[normalizeTag(tag)]
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
		if len(out) == maxSetSelection {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var (
	budgetRangeRE  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:-|–|to)\s*£?\s*(\d+(?:\.\d+)?)`)
	budgetNumberRE = regexp.MustCompile(`\d+(?:\.\d+)?`)
	budgetAboveRE  = regexp.MustCompile(`(?i)(?:\b(?:over|above|more than|upwards of)\s*£?\s*(\d+(?:\.\d+)?))|(?:(\d+(?:\.\d+)?)\s*\+)`)
)

// BucketFor maps free-form budget text onto one of the four buckets. Canonical
// labels pass through, an open-ended amount ("100+", "over 100") means strictly
// more than that amount, a range is classified by its upper bound, otherwise
// the first number is used. Unparseable text yields "".
func BucketFor(text string) Budget {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	for _, b := range BudgetOptions {
		if strings.EqualFold(text, string(b)) {
			return b
		}
	}
	cleaned := strings.ReplaceAll(text, ",", "")
	if m := budgetAboveRE.FindStringSubmatch(cleaned); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return bucketForValue(math.Nextafter(v, math.Inf(1)))
		}
	}
	if m := budgetRangeRE.FindStringSubmatch(cleaned); len(m) == 3 {
		if upper, err := strconv.ParseFloat(m[2], 64); err == nil {
			return bucketForValue(upper)
		}
	}
	if m := budgetNumberRE.FindString(cleaned); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return bucketForValue(v)
		}
	}
	return ""
}

func bucketForValue(v float64) Budget {
	switch {
	case v <= 30:
		return BudgetUpTo30
	case v <= 60:
		return Budget30To60
	case v <= 100:
		return Budget60To100
	default:
		return Budget100Plus
	}
}
