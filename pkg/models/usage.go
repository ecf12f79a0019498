package models

import "github.com/shopspring/decimal"

// DailyUsage is one day of post consumption
type DailyUsage struct {
	Date  string `json:"date"`
	Usage int64  `json:"usage"`
}

// UsageReport summarizes X API project consumption for the current billing cycle
type UsageReport struct {
	ProjectID   string          `json:"project_id,omitempty"`
	Daily       []DailyUsage    `json:"daily,omitempty"`
	UsedPercent decimal.Decimal `json:"used_percent"`
	ProjectCap  int64           `json:"project_cap"`
	Usage       int64           `json:"project_usage"`
	CapResetDay int             `json:"cap_reset_day,omitempty"`
}

// NewUsageReport derives the used percentage (one decimal place) from usage and cap
func NewUsageReport(projectID string, usage, capacity int64, resetDay int, daily []DailyUsage) *UsageReport {
	percent := decimal.Zero
	if capacity > 0 {
		percent = decimal.NewFromInt(usage).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(capacity)).
			Round(1)
	}

	return &UsageReport{
		ProjectID:   projectID,
		Usage:       usage,
		ProjectCap:  capacity,
		CapResetDay: resetDay,
		UsedPercent: percent,
		Daily:       daily,
	}
}

// Remaining returns how many posts are left before the cap, never negative
func (u *UsageReport) Remaining() int64 {
	if u.ProjectCap <= u.Usage {
		return 0
	}
	return u.ProjectCap - u.Usage
}
