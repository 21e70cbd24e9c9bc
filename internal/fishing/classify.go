package fishing

import "strings"

// Kind classifies a caught item.
type Kind string

const (
	KindTreasure Kind = "treasure"
	KindJunk     Kind = "junk"
	KindFish     Kind = "fish"
)

// Item name substrings, matched in order. Treasure wins over junk.
var (
	treasureItems = []string{
		"enchanted_book",
		"name_tag",
		"nautilus_shell",
		"saddle",
		"bow",
		"fishing_rod",
	}

	junkItems = []string{
		"leather_boots",
		"leather",
		"bowl",
		"string",
		"potion", // water bottle
		"bone",
		"ink_sac",
		"tripwire_hook",
		"rotten_flesh",
		"stick",
		"bamboo",
		"lily_pad",
	}
)

// Classify returns the kind of the named item.
func Classify(item string) Kind {
	switch {
	case containsAny(item, treasureItems):
		return KindTreasure
	case containsAny(item, junkItems):
		return KindJunk
	default:
		return KindFish
	}
}

// IsTreasure reports whether item is a treasure catch.
func IsTreasure(item string) bool {
	return containsAny(item, treasureItems)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
