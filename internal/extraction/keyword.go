package extraction

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/nightlife-concierge/internal/llm"
	"github.com/wolfman30/nightlife-concierge/internal/preferences"
)

const amount = `\d+(?:\.\d+)?`

var (
	// Gender counts only as a self-description ("i'm a man", "gender: other")
	// or as the word that opens the reply.
	genderWords   = `(woman|female|girl|lady|man|male|guy|boy|other|non-binary|nonbinary)`
	genderSelfRE  = regexp.MustCompile(`\b(?:i'?m|i am|gender(?:\s+is)?\s*:?)\s+(?:an?\s+)?` + genderWords + `\b`)
	genderReplyRE = regexp.MustCompile(`^\W*` + genderWords + `\s*(?:[,.;:!]|$)`)

	musicRE = phraseRegexp([]string{
		"deep house", "afro house", "tech house", "hip hop", "hip-hop", "big room",
		"bass music", "drum and bass", "house", "afro", "commercial", "rap",
		"reggaeton", "techno", "edm", "80s", "eighties", "dnb", "dubstep",
	})
	vibeRE = phraseRegexp([]string{
		"high-end", "high end", "luxury", "upscale", "posh", "classy", "exclusive",
		"vip", "doesn't matter", "doesnt matter", "don't mind", "dont mind",
		"rave", "raving", "underground", "cheap",
	})

	budgetCurrencyRE = regexp.MustCompile(`[£$€]\s*` + amount + `(?:\s*(?:-|–|to)\s*[£$€]?\s*` + amount + `|\s*\+)?`)
	budgetAboveRE    = regexp.MustCompile(`\b(?:over|above|more than|upwards of)\s*[£$€]?\s*` + amount)
	budgetSuffixRE   = regexp.MustCompile(amount + `(?:\s*(?:-|–|to)\s*` + amount + `)?\s*(?:pounds?|quid|dollars?|bucks|euros?|gbp)\b`)
	budgetCueRE      = regexp.MustCompile(`\b(?:budget|spend|spending)\b[^\d]{0,15}(` + amount + `(?:\s*(?:-|–|to)\s*` + amount + `)?)`)

	isoDateRE     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	eventCueRE    = regexp.MustCompile(`\b(events?|gigs?|what'?s on|line-?ups?|parties|party|tickets?|tonight|this weekend|tomorrow)\b`)
	moreInfoCueRE = regexp.MustCompile(`\b(tell me (?:more )?about|more info|information about|dress code|door policy|how do i get|where is|what is .+ like)\b`)
)

func phraseRegexp(phrases []string) *regexp.Regexp {
	sorted := append([]string(nil), phrases...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, p := range sorted {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// KeywordExtractor is a deterministic, rule-based Extractor used when no
// language model is configured.
type KeywordExtractor struct {
	loc *time.Location
	now func() time.Time
}

// NewKeywordExtractor builds a keyword extractor resolving dates in loc.
func NewKeywordExtractor(loc *time.Location, now func() time.Time) *KeywordExtractor {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &KeywordExtractor{loc: loc, now: now}
}

// ExtractPreferences picks catalogue phrases out of the message.
func (k *KeywordExtractor) ExtractPreferences(_ context.Context, message string) preferences.Partial {
	text := normalizeText(message)
	var p preferences.Partial

	if m := genderSelfRE.FindStringSubmatch(text); m != nil {
		p.Gender = string(preferences.CanonicalGender(m[1]))
	} else if m := genderReplyRE.FindStringSubmatch(text); m != nil {
		p.Gender = string(preferences.CanonicalGender(m[1]))
	}

	p.MusicPreferences = musicRE.FindAllString(text, -1)
	p.Vibe = vibeRE.FindAllString(text, -1)

	switch {
	case budgetAboveRE.MatchString(text):
		p.Budget = budgetAboveRE.FindString(text)
	case budgetCurrencyRE.MatchString(text):
		p.Budget = budgetCurrencyRE.FindString(text)
	case budgetSuffixRE.MatchString(text):
		p.Budget = budgetSuffixRE.FindString(text)
	default:
		if m := budgetCueRE.FindStringSubmatch(text); len(m) == 2 {
			p.Budget = m[1]
		}
	}
	return p
}

// ClassifyIntent looks for event and information cues.
func (k *KeywordExtractor) ClassifyIntent(_ context.Context, message string) EventQuery {
	text := normalizeText(message)
	date := isoDateRE.FindString(text)
	if eventCueRE.MatchString(text) || date != "" {
		today := k.now().In(k.loc)
		switch {
		case date != "":
			date = isoDate(date)
		case strings.Contains(text, "tomorrow"):
			date = today.AddDate(0, 0, 1).Format("2006-01-02")
		case strings.Contains(text, "tonight") || strings.Contains(text, "today"):
			date = today.Format("2006-01-02")
		}
		return EventQuery{WantsEvents: true, Date: date}
	}
	if moreInfoCueRE.MatchString(text) {
		return EventQuery{WantsMoreInfo: true}
	}
	return GeneralChatQuery()
}

// Answer returns fixed copy; there is no model to ask.
func (k *KeywordExtractor) Answer(_ context.Context, mode Mode, _ []llm.Message, _ string) (string, error) {
	if mode == ModeMoreInfo {
		return "I don't have more details on that right now. I can list clubs that suit your tastes, show more of them, or find events on a date.", nil
	}
	return `I'm here to help with your night out! Ask me for club recommendations, write "show more" for the next clubs, or ask about events on a date.`, nil
}

func normalizeText(message string) string {
	text := strings.ToLower(message)
	return strings.ReplaceAll(text, "’", "'")
}
