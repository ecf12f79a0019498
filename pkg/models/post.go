package models

import "time"

// RawPost is one post returned by the evidence source. Lives for one request only.
type RawPost struct {
	CreatedAt       time.Time `json:"created_at"`
	AuthorVerified  *bool     `json:"author_verified,omitempty"`
	AuthorFollowers *int      `json:"author_followers,omitempty"`
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	AuthorUsername  string    `json:"author_username,omitempty"`
	LikeCount       int       `json:"like_count"`
	RetweetCount    int       `json:"retweet_count"`
	ReplyCount      int       `json:"reply_count"`
	QuoteCount      int       `json:"quote_count"`
}

// AuthorKey identifies the author for diversity accounting; falls back to the post id
func (p RawPost) AuthorKey() string {
	if p.AuthorUsername != "" {
		return p.AuthorUsername
	}
	return p.ID
}

// IsVerified reports the verified flag, treating unknown as false
func (p RawPost) IsVerified() bool {
	return p.AuthorVerified != nil && *p.AuthorVerified
}

// Followers returns the follower count, treating unknown as zero
func (p RawPost) Followers() int {
	if p.AuthorFollowers == nil {
		return 0
	}
	return *p.AuthorFollowers
}

// ScoredPost is a RawPost with its ranking score attached
type ScoredPost struct {
	RawPost
	Score           float64 `json:"score"`
	EngagementScore int     `json:"engagement_score"`
}

// NormalizedPost is a selected post as shown to the UI, ordered by selection rank
type NormalizedPost struct {
	CreatedAt       time.Time `json:"created_at"`
	AuthorVerified  *bool     `json:"author_verified,omitempty"`
	AuthorFollowers *int      `json:"author_followers,omitempty"`
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	AuthorUsername  string    `json:"author_username,omitempty"`
	LikeCount       int       `json:"like_count"`
	RetweetCount    int       `json:"retweet_count"`
	ReplyCount      int       `json:"reply_count"`
	QuoteCount      int       `json:"quote_count"`
	EngagementScore int       `json:"engagement_score"`
}

// CompactPost is the LLM-facing projection of a selected post
type CompactPost struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	AgeMin          int    `json:"age_min"`
	EngagementScore int    `json:"engagement_score"`
	Verified        bool   `json:"verified"`
}

// BoolPtr is a helper for optional author flags
func BoolPtr(v bool) *bool {
	return &v
}

// IntPtr is a helper for optional author counters
func IntPtr(v int) *int {
	return &v
}
