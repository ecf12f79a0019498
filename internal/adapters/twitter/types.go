package twitter

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/selivandex/sentiment-gate/pkg/models"
)

type publicMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

type tweet struct {
	CreatedAt     time.Time      `json:"created_at"`
	PublicMetrics *publicMetrics `json:"public_metrics"`
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	AuthorID      string         `json:"author_id"`
	Lang          string         `json:"lang"`
}

type user struct {
	Verified      *bool  `json:"verified"`
	PublicMetrics *struct {
		FollowersCount *int `json:"followers_count"`
	} `json:"public_metrics"`
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type searchResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []user `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

// toRawPosts joins tweets with their expanded authors
func (r *searchResponse) toRawPosts() []models.RawPost {
	users := make(map[string]user, len(r.Includes.Users))
	for _, u := range r.Includes.Users {
		users[u.ID] = u
	}

	posts := make([]models.RawPost, 0, len(r.Data))
	for _, t := range r.Data {
		p := models.RawPost{
			ID:        t.ID,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
		}

		if t.PublicMetrics != nil {
			p.LikeCount = t.PublicMetrics.LikeCount
			p.RetweetCount = t.PublicMetrics.RetweetCount
			p.ReplyCount = t.PublicMetrics.ReplyCount
			p.QuoteCount = t.PublicMetrics.QuoteCount
		}

		if u, ok := users[t.AuthorID]; ok && t.AuthorID != "" {
			p.AuthorUsername = u.Username
			p.AuthorVerified = u.Verified
			if u.PublicMetrics != nil {
				p.AuthorFollowers = u.PublicMetrics.FollowersCount
			}
		}

		posts = append(posts, p)
	}

	return posts
}

// flexInt accepts both 123 and "123"; the usage endpoint has returned either
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}

type usageResponse struct {
	Data *struct {
		ProjectID         json.RawMessage `json:"project_id"`
		ProjectCap        flexInt         `json:"project_cap"`
		ProjectUsage      flexInt         `json:"project_usage"`
		CapResetDay       int             `json:"cap_reset_day"`
		DailyProjectUsage *struct {
			Usage []struct {
				Date  string  `json:"date"`
				Usage flexInt `json:"usage"`
			} `json:"usage"`
		} `json:"daily_project_usage"`
	} `json:"data"`
}

func (r *usageResponse) toReport() *models.UsageReport {
	if r.Data == nil {
		return models.NewUsageReport("", 0, 0, 0, nil)
	}

	var daily []models.DailyUsage
	if r.Data.DailyProjectUsage != nil {
		for _, d := range r.Data.DailyProjectUsage.Usage {
			daily = append(daily, models.DailyUsage{Date: d.Date, Usage: int64(d.Usage)})
		}
	}

	projectID := string(bytes.Trim(r.Data.ProjectID, `"`))

	return models.NewUsageReport(
		projectID,
		int64(r.Data.ProjectUsage),
		int64(r.Data.ProjectCap),
		r.Data.CapResetDay,
		daily,
	)
}

type errorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}
