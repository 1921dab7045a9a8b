package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/wolfman30/nightlife-concierge/internal/preferences"
)

// decodeObject pulls the first JSON object out of model output. Output that
// is not valid JSON is passed through jsonrepair once before giving up.
func decodeObject(raw string) (map[string]any, bool) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start := strings.Index(body, "{")
	if start < 0 {
		return nil, false
	}
	if end := strings.LastIndex(body, "}"); end > start {
		body = body[start : end+1]
	} else {
		body = body[start:]
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err == nil {
		return obj, true
	}
	repaired, err := jsonrepair.JSONRepair(body)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// partialFromObject keeps only fields with the expected shape.
func partialFromObject(obj map[string]any) preferences.Partial {
	return preferences.Partial{
		Gender:           stringField(obj["gender"]),
		MusicPreferences: stringList(obj["music_preferences"]),
		Budget:           budgetField(obj["budget"]),
		Vibe:             stringList(obj["vibe"]),
	}
}

// eventQueryFromObject validates an intent object. It reports false when the
// object carries no recognizable intent fields.
func eventQueryFromObject(obj map[string]any) (EventQuery, bool) {
	wantsEvents, okEvents := boolField(obj["wants_events"])
	wantsInfo, okInfo := boolField(obj["wants_more_info"])
	general, okGeneral := boolField(obj["general_chat"])
	if !okEvents && !okInfo && !okGeneral {
		return EventQuery{}, false
	}
	q := EventQuery{
		WantsEvents:   wantsEvents,
		WantsMoreInfo: wantsInfo && !wantsEvents,
		GeneralChat:   general,
	}
	if q.WantsEvents {
		q.Date = isoDate(stringField(obj["date"]))
	}
	if !q.WantsEvents && !q.WantsMoreInfo {
		q.GeneralChat = true
	}
	return q, true
}

func stringField(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return []string{strings.TrimSpace(val)}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := stringField(item); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

func budgetField(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func boolField(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "yes", "true":
			return true, true
		case "no", "false":
			return false, true
		}
	}
	return false, false
}

func isoDate(raw string) string {
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return ""
	}
	return raw
}

func describeOptions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Gender: [%s]\n", strings.Join(preferences.SlotGender.Options(), ", "))
	fmt.Fprintf(&b, "- Music preferences: [%s]\n", strings.Join(preferences.MusicOptions, ", "))
	fmt.Fprintf(&b, "- Budget: [%s]\n", strings.Join(preferences.SlotBudget.Options(), ", "))
	fmt.Fprintf(&b, "- Vibe: [%s]\n", strings.Join(preferences.VibeOptions, ", "))
	return b.String()
}
