package sentiment

import (
	"regexp"
	"strings"
	"time"

	"github.com/selivandex/sentiment-gate/pkg/models"
)

const (
	dedupKeyLen = 100

	emojiLow      = 0x1F300
	emojiHigh     = 0x1F9FF
	emojiMaxCount = 5

	giveawayPenalty   = 0.3
	emojiHeavyPenalty = 0.8

	verifiedBoost       = 1.3
	largeFollowing      = 10000
	largeFollowingBoost = 1.2
	midFollowing        = 1000
	midFollowingBoost   = 1.1
)

var giveawayTerms = regexp.MustCompile(`(?i)giveaway|retweet|follow\s+to\s+win|free\s+\$|airdrop`)

// engagement weights reposts and replies double, quotes triple
func engagement(p models.RawPost) int {
	return p.LikeCount + 2*p.RetweetCount + 2*p.ReplyCount + 3*p.QuoteCount
}

// recencyBoost is a step function of post age
func recencyBoost(createdAt, now time.Time) float64 {
	minutes := now.Sub(createdAt).Minutes()
	switch {
	case minutes <= 60:
		return 1.5
	case minutes <= 360:
		return 1.2
	case minutes <= 1440:
		return 1.0
	default:
		return 0.8
	}
}

func authorBoost(p models.RawPost) float64 {
	boost := 1.0
	if p.IsVerified() {
		boost *= verifiedBoost
	}

	switch followers := p.Followers(); {
	case followers >= largeFollowing:
		boost *= largeFollowingBoost
	case followers >= midFollowing:
		boost *= midFollowingBoost
	}
	return boost
}

// spamPenalty applies the giveaway and emoji-heavy penalties independently
func spamPenalty(text string) float64 {
	penalty := 1.0
	if giveawayTerms.MatchString(text) {
		penalty *= giveawayPenalty
	}
	if countEmoji(text) > emojiMaxCount {
		penalty *= emojiHeavyPenalty
	}
	return penalty
}

func countEmoji(text string) int {
	n := 0
	for _, r := range text {
		if r >= emojiLow && r <= emojiHigh {
			n++
		}
	}
	return n
}

// dedupKey lower-cases, collapses whitespace, trims and keeps the first 100 runes
func dedupKey(text string) string {
	key := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return truncateRunes(key, dedupKeyLen)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// score combines the four factors for one post
func score(p models.RawPost, now time.Time) (float64, int) {
	eng := engagement(p)
	s := float64(eng) * recencyBoost(p.CreatedAt, now) * authorBoost(p) * spamPenalty(p.Text)
	return s, eng
}
