package lcu

var queueNames = map[int]string{
	0:    "Custom Game",
	400:  "Normal Draft",
	420:  "Ranked Solo/Duo",
	430:  "Normal Blind",
	440:  "Ranked Flex",
	450:  "ARAM",
	490:  "Quickplay",
	700:  "Clash",
	830:  "Co-op vs. AI",
	840:  "Co-op vs. AI",
	850:  "Co-op vs. AI",
	900:  "ARURF",
	1020: "One for All",
	1090: "Teamfight Tactics",
	1100: "Ranked TFT",
	1300: "Nexus Blitz",
	1400: "Ultimate Spellbook",
	1700: "Arena",
	1900: "URF",
}

// QueueName returns a human-readable queue name. Unknown ids get an empty
// string so the caller can fall back to the game mode.
func QueueName(queueID int) string {
	if queueID < 0 {
		return ""
	}
	return queueNames[queueID]
}

// RankedQueueType picks the ranked ladder shown for a queue.
func RankedQueueType(queueID int) string {
	switch queueID {
	case 440:
		return "RANKED_FLEX_SR"
	case 1090, 1100:
		return "RANKED_TFT"
	default:
		return "RANKED_SOLO_5x5"
	}
}
