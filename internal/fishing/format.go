package fishing

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Chat lines said by the bot.
const (
	openingLine  = "I sense something intriguing in these waters... Let's see what they reveal."
	farewellLine = "The waters have shared their secrets. Session complete."
)

// Tool responses.
const (
	alreadyFishingText = "I'm already fishing. Use fish-stop to stop, or fish-status to check progress."
	noRodText          = "I don't have a fishing rod in my inventory. Please provide one."
	notFishingText     = "I'm not currently fishing."
	notFishingHintText = "I'm not currently fishing. Use fish-start to begin."
)

var catchMessages = map[Kind][]string{
	KindTreasure: {
		"Now this is intriguing...",
		"The waters reveal their secrets.",
		"Patience rewards those who wait.",
		"I sensed this one coming.",
	},
	KindFish: {
		"Another one for the collection.",
		"The rhythm of the cast continues.",
		"Steady progress.",
	},
	KindJunk: {
		"Not everything hidden is valuable... but noted.",
		"Even the mundane has its place.",
	},
}

// announcement returns the chat line for a catch, or "" if it is not announced.
// pick chooses an index in [0, n).
func announcement(item string, kind Kind, announce bool, pick func(n int) int) string {
	if !announce {
		return ""
	}
	msgs := catchMessages[kind]
	switch kind {
	case KindTreasure:
		return fmt.Sprintf("%s Caught: %s", msgs[pick(len(msgs))], item)
	case KindFish:
		return fmt.Sprintf("%s %s", msgs[pick(len(msgs))], item)
	default:
		return ""
	}
}

// formatDuration renders d as "1h 5m", "3m 12s" or "42s".
func formatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// catchRate returns catches per minute with one decimal, or "0" when no time has passed.
func catchRate(catches int, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "0"
	}
	return fmt.Sprintf("%.1f", float64(catches)/elapsed.Minutes())
}

type itemCount struct {
	item  string
	count int
}

// breakdown counts catches per item, most frequent first. Ties keep the
// order in which items were first caught.
func breakdown(catches []Catch) []itemCount {
	index := make(map[string]int)
	var counts []itemCount
	for _, c := range catches {
		i, ok := index[c.Item]
		if !ok {
			i = len(counts)
			index[c.Item] = i
			counts = append(counts, itemCount{item: c.Item})
		}
		counts[i].count++
	}

	sort.SliceStable(counts, func(a, b int) bool {
		return counts[a].count > counts[b].count
	})
	return counts
}

func startText(rod string, enchanted, announce bool) string {
	var b strings.Builder
	b.WriteString("Fishing session started.\n")
	b.WriteString("Rod equipped: " + rod)
	if enchanted {
		b.WriteString(" (enchanted)")
	}
	b.WriteString("\n")
	if announce {
		b.WriteString("Announcements: on\n\n")
	} else {
		b.WriteString("Announcements: off\n\n")
	}
	b.WriteString("Use fish-status to check progress, fish-stop to end session.")
	return b.String()
}

// summaryText renders the end-of-session report.
func summaryText(snap Snapshot) string {
	var b strings.Builder
	b.WriteString("Fishing session complete.\n\n")
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(snap.Elapsed))
	fmt.Fprintf(&b, "Total catches: %d\n", len(snap.Catches))
	fmt.Fprintf(&b, "Treasures found: %d\n", len(snap.Treasures))
	if snap.StopReason != "" && snap.StopReason != StopReasonStopped {
		fmt.Fprintf(&b, "Ended early: %s\n", snap.StopReason)
	}
	b.WriteString("\n")

	if counts := breakdown(snap.Catches); len(counts) > 0 {
		b.WriteString("Catch breakdown:\n")
		for _, c := range counts {
			marker := ""
			if IsTreasure(c.item) {
				marker = " ★"
			}
			fmt.Fprintf(&b, "  %s: %d%s\n", c.item, c.count, marker)
		}
	}

	if len(snap.Treasures) > 0 {
		b.WriteString("\nTreasures: " + strings.Join(snap.Treasures, ", "))
	}

	return b.String()
}

// statusText renders the in-progress report.
func statusText(snap Snapshot) string {
	var b strings.Builder
	b.WriteString("Fishing in progress...\n\n")
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(snap.Elapsed))
	fmt.Fprintf(&b, "Total catches: %d\n", len(snap.Catches))
	fmt.Fprintf(&b, "Catch rate: %s/min\n", catchRate(len(snap.Catches), snap.Elapsed))
	fmt.Fprintf(&b, "Treasures found: %d\n", len(snap.Treasures))

	recent := snap.Catches
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	if len(recent) > 0 {
		names := make([]string, len(recent))
		for i, c := range recent {
			names[i] = c.Item
		}
		b.WriteString("\nRecent: " + strings.Join(names, ", "))
	}

	if len(snap.Treasures) > 0 {
		b.WriteString("\nTreasures: " + strings.Join(snap.Treasures, ", "))
	}

	return b.String()
}
