package sentiment

import (
	"math"
	"sort"
	"time"

	"github.com/selivandex/sentiment-gate/pkg/models"
)

// MaxEvidenceText is the rune cap for post text shown to the model
const MaxEvidenceText = 220

// DiversityConfig limits how many posts one author contributes once the selection has grown
type DiversityConfig struct {
	// PerAuthorCap is the number of accepted posts after which an author is skipped
	PerAuthorCap int
	// CapAfter is the selection size from which the cap applies
	CapAfter int
}

// DefaultDiversity returns the production thresholds
func DefaultDiversity() DiversityConfig {
	return DiversityConfig{PerAuthorCap: 2, CapAfter: 6}
}

// Selection is the ranked subset of posts plus its LLM-facing projection.
// Evidence[i] always describes TopPosts[i].
type Selection struct {
	TopPosts []models.NormalizedPost
	Evidence []models.CompactPost
}

// IDs returns evidence ids in rank order
func (s Selection) IDs() []string {
	ids := make([]string, len(s.Evidence))
	for i, e := range s.Evidence {
		ids[i] = e.ID
	}
	return ids
}

// Ranker scores, dedups and selects posts. Stateless apart from its configuration.
type Ranker struct {
	now       func() time.Time
	diversity DiversityConfig
}

// NewRanker creates ranker with wall clock and default diversity thresholds
func NewRanker() *Ranker {
	return &Ranker{
		now:       time.Now,
		diversity: DefaultDiversity(),
	}
}

// WithClock returns a copy of the ranker reading time from now
func (r *Ranker) WithClock(now func() time.Time) *Ranker {
	cp := *r
	cp.now = now
	return &cp
}

// WithDiversity returns a copy of the ranker with different diversity thresholds
func (r *Ranker) WithDiversity(cfg DiversityConfig) *Ranker {
	cp := *r
	cp.diversity = cfg
	return &cp
}

// Rank selects up to topN posts. The result is deterministic for a given input and clock.
func (r *Ranker) Rank(posts []models.RawPost, topN int) Selection {
	if topN <= 0 || len(posts) == 0 {
		return Selection{
			TopPosts: []models.NormalizedPost{},
			Evidence: []models.CompactPost{},
		}
	}

	now := r.now()

	scored := r.scoreUnique(posts, now)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	selected := r.selectDiverse(scored, topN)

	sel := Selection{
		TopPosts: make([]models.NormalizedPost, len(selected)),
		Evidence: make([]models.CompactPost, len(selected)),
	}
	for i, p := range selected {
		sel.TopPosts[i] = normalize(p)
		sel.Evidence[i] = compact(p, now)
	}

	return sel
}

// scoreUnique scores posts in input order, dropping near-duplicate texts after the first
func (r *Ranker) scoreUnique(posts []models.RawPost, now time.Time) []models.ScoredPost {
	seen := make(map[string]struct{}, len(posts))
	scored := make([]models.ScoredPost, 0, len(posts))

	for _, p := range posts {
		key := dedupKey(p.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		s, eng := score(p, now)
		scored = append(scored, models.ScoredPost{
			RawPost:         p,
			Score:           s,
			EngagementScore: eng,
		})
	}

	return scored
}

// selectDiverse takes posts by score while capping per-author contribution, then backfills
func (r *Ranker) selectDiverse(sorted []models.ScoredPost, topN int) []models.ScoredPost {
	picked := make([]bool, len(sorted))
	perAuthor := make(map[string]int)
	result := make([]models.ScoredPost, 0, min(topN, len(sorted)))

	for i, p := range sorted {
		if len(result) >= topN {
			break
		}
		key := p.AuthorKey()
		if perAuthor[key] >= r.diversity.PerAuthorCap && len(result) >= r.diversity.CapAfter {
			continue
		}
		perAuthor[key]++
		picked[i] = true
		result = append(result, p)
	}

	for i, p := range sorted {
		if len(result) >= topN {
			break
		}
		if !picked[i] {
			picked[i] = true
			result = append(result, p)
		}
	}

	return result
}

func normalize(p models.ScoredPost) models.NormalizedPost {
	return models.NormalizedPost{
		ID:              p.ID,
		Text:            p.Text,
		CreatedAt:       p.CreatedAt,
		AuthorUsername:  p.AuthorUsername,
		AuthorVerified:  p.AuthorVerified,
		AuthorFollowers: p.AuthorFollowers,
		LikeCount:       p.LikeCount,
		RetweetCount:    p.RetweetCount,
		ReplyCount:      p.ReplyCount,
		QuoteCount:      p.QuoteCount,
		EngagementScore: p.EngagementScore,
	}
}

func compact(p models.ScoredPost, now time.Time) models.CompactPost {
	return models.CompactPost{
		ID:              p.ID,
		AgeMin:          int(math.Floor(now.Sub(p.CreatedAt).Minutes())),
		EngagementScore: p.EngagementScore,
		Verified:        p.IsVerified(),
		Text:            truncateRunes(p.Text, MaxEvidenceText),
	}
}
