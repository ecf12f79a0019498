package workers

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/models"
)

// UsageSource reports X project usage with the server keys
type UsageSource interface {
	Usage(ctx context.Context, creds models.Credentials) (*models.UsageReport, error)
}

// UsageNotifier receives a report once usage crosses the alert threshold
type UsageNotifier interface {
	NotifyUsage(ctx context.Context, report *models.UsageReport) error
}

// UsagePoller refreshes the X usage gauges and alerts once per crossing of the threshold
type UsagePoller struct {
	source    UsageSource
	notifier  UsageNotifier
	threshold decimal.Decimal
	alerted   bool
}

// NewUsagePoller creates usage poller. alertPercent <= 0 or a nil notifier disables alerts.
func NewUsagePoller(source UsageSource, notifier UsageNotifier, alertPercent int) *UsagePoller {
	return &UsagePoller{
		source:    source,
		notifier:  notifier,
		threshold: decimal.NewFromInt(int64(alertPercent)),
	}
}

// Name returns worker name for logging
func (p *UsagePoller) Name() string {
	return "usage_poller"
}

// Run fetches usage once. Gauges are updated by the source.
func (p *UsagePoller) Run(ctx context.Context) error {
	report, err := p.source.Usage(ctx, models.Credentials{})
	if err != nil {
		return fmt.Errorf("failed to poll X usage: %w", err)
	}

	logger.Debug("X usage polled",
		zap.Int64("usage", report.Usage),
		zap.Int64("cap", report.ProjectCap),
		zap.String("used_percent", report.UsedPercent.String()),
	)

	if p.notifier == nil || !p.threshold.IsPositive() {
		return nil
	}

	// re-arm after the cycle resets below the threshold
	if report.UsedPercent.LessThan(p.threshold) {
		p.alerted = false
		return nil
	}
	if p.alerted {
		return nil
	}

	logger.Warn("X usage crossed alert threshold",
		zap.String("used_percent", report.UsedPercent.String()),
		zap.String("threshold", p.threshold.String()),
	)

	if err := p.notifier.NotifyUsage(ctx, report); err != nil {
		return fmt.Errorf("failed to send usage alert: %w", err)
	}
	p.alerted = true

	return nil
}
