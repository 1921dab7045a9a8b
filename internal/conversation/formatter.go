package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/nightlife-concierge/internal/directory"
	"github.com/wolfman30/nightlife-concierge/internal/eventsearch"
	"github.com/wolfman30/nightlife-concierge/internal/preferences"
)

const (
	notAvailable = "N/A"

	onboardingMessage = `Hello! I will help you discover the best nightclubs & events based on your tastes with the lowest real time offers! Answer the following questions for allowing us to understand your tastes! 🔥
----------------------------------
1) First, tell us your gender:

1️⃣ Woman 💃
2️⃣ Man 🕺
3️⃣ Other 🪩
👉 You can pick just one option
----------------------------------
2) Next, what kind of music do you enjoy? 🎵

1️⃣ House
2️⃣ Deep House / Afro House
3️⃣ Commercial
4️⃣ Hip-Hop / Rap
5️⃣ Reggaeton
6️⃣ Tech House
7️⃣ Techno
8️⃣ EDM
9️⃣ Big Room
🔟 80s
👉 You can pick up to 3 options max!
----------------------------------
3) How much do you usually spend on a night out? 💷

1️⃣ Up to £30
2️⃣ £30-60
3️⃣ £60-100
4️⃣ £100+
👉 You can pick just one option
----------------------------------
4) What's your vibe for a night out?

1️⃣ High-end 🥂
2️⃣ Exclusive 🍸
3️⃣ It doesn't matter as long as it's cheap 🤠
4️⃣ Rave vibes 🕺💃
👉 You can pick 3 options maximum`

	noMatchingVenuesMessage = "Sorry, no matching clubs found."
	noMoreVenuesMessage     = "That's all the clubs matching your preferences for now. Tell me if your tastes change or ask me about events!"
	apologyMessage          = "An error occurred. Please try again later."
	emptyAnswerMessage      = "Sorry, I couldn't understand your request. Could you rephrase it?"
)

func formatNoEvents(windowDays int) string {
	switch windowDays {
	case 0:
		return "No events found for your requested date."
	case 1:
		return "No events found for your requested date or the next day."
	default:
		return fmt.Sprintf("No events found for your requested date or the next %d days.", windowDays)
	}
}

func formatMissingSlots(missing []preferences.Slot) string {
	var b strings.Builder
	b.WriteString("Thanks! To find the right clubs for you I still need your ")
	labels := make([]string, len(missing))
	for i, slot := range missing {
		labels[i] = slot.Label()
	}
	b.WriteString(joinWithAnd(labels))
	b.WriteString(".\n")
	for _, slot := range missing {
		fmt.Fprintf(&b, "\n%s: %s", capitalize(slot.Label()), strings.Join(slot.Options(), ", "))
	}
	return b.String()
}

// formatVenues renders the batch in batch order. Venues missing from the
// directory are still listed by name.
func formatVenues(batch []string, details []directory.VenueDetails, hasMore bool, cue string) string {
	byName := make(map[string]directory.VenueDetails, len(details))
	for _, d := range details {
		byName[strings.ToLower(d.Name)] = d
	}

	var b strings.Builder
	b.WriteString("Here are some clubs you might like:\n")
	for _, name := range batch {
		d, ok := byName[strings.ToLower(name)]
		if !ok {
			d = directory.VenueDetails{Name: name}
		}
		fmt.Fprintf(&b, "\n%s\n", name)
		fmt.Fprintf(&b, "📍 Location: %s\n", orNA(d.Municipality))
		fmt.Fprintf(&b, "🏷️ Address: %s\n", orNA(d.Address))
		fmt.Fprintf(&b, "📮 Postcode: %s\n", orNA(d.Postcode))
		fmt.Fprintf(&b, "🍸 Cocktail Max Price: %s\n", orNA(d.CocktailMaxPrice))
		fmt.Fprintf(&b, "📝 Description: %s\n", orNA(d.Description))
	}
	if hasMore && cue != "" {
		fmt.Fprintf(&b, "\nReply \"%s\" to see more clubs.", cue)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEvents(anchor string, events []eventsearch.EventRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are some events from %s:\n", anchor)
	for _, e := range events {
		name := e.EventName
		if name == "" {
			name = "Event"
		}
		venue := e.VenueName
		if venue == "" {
			venue = "Unknown"
		}
		minAge := notAvailable
		if e.MinAge > 0 {
			minAge = strconv.Itoa(e.MinAge)
		}
		date := notAvailable
		if !e.Date.IsZero() {
			date = e.Date.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "\n🎉 %s\n", name)
		fmt.Fprintf(&b, "📍 Venue: %s\n", venue)
		fmt.Fprintf(&b, "📅 Date: %s\n", date)
		if e.StartTime != "" {
			fmt.Fprintf(&b, "🕙 Starts: %s\n", e.StartTime)
		}
		fmt.Fprintf(&b, "🔞 Minimum Age: %s\n", minAge)
		fmt.Fprintf(&b, "🎟 Tickets: %s\n", orNA(e.TicketLink))
	}
	return strings.TrimRight(b.String(), "\n")
}

func orNA(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return notAvailable
	}
	return *v
}

func joinWithAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
