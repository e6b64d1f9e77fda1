package app

import (
	"context"
	"fmt"
	"strings"

	"bn-breakout-bot/internal/config"
	"bn-breakout-bot/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LevelsReport is a read-only snapshot of one asset's channel. Direction is
// empty when no API credentials are configured.
type LevelsReport struct {
	Asset     string
	Levels    strategy.PriceLevels
	MarkPrice decimal.Decimal
	Direction string
	Exposure  decimal.Decimal
	Err       error
}

// Levels computes the current channel for every configured asset without
// touching orders or leverage.
func Levels(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]LevelsReport, error) {
	exchange := newBinanceExchange(newRESTClient(cfg, log), nil)
	signed := strings.TrimSpace(cfg.Connection.APIKey) != "" && strings.TrimSpace(cfg.Connection.APISecret) != ""
	return collectLevels(ctx, exchange, cfg.Trading.Assets(), signed)
}

func collectLevels(ctx context.Context, exchange Exchange, assets []config.AssetConfig, signed bool) ([]LevelsReport, error) {
	var account *strategy.AccountSnapshot
	if signed {
		snapshot, err := exchange.FetchAccountSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch account: %w", err)
		}
		account = &snapshot
	}
	reports := make([]LevelsReport, 0, len(assets))
	var errs error
	for _, asset := range assets {
		report := levelsFor(ctx, exchange, asset, account)
		errs = multierr.Append(errs, report.Err)
		reports = append(reports, report)
	}
	return reports, errs
}

func levelsFor(ctx context.Context, exchange Exchange, asset config.AssetConfig, account *strategy.AccountSnapshot) LevelsReport {
	report := LevelsReport{Asset: asset.Symbol}
	meta, err := exchange.FetchAssetMetadata(ctx, asset.Symbol)
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", asset.Symbol, err)
		return report
	}
	bars, err := exchange.FetchBars(ctx, asset.Symbol, asset.Interval, asset.RequiredBars())
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", asset.Symbol, err)
		return report
	}
	report.Levels, err = strategy.ComputeLevels(bars, asset.EntryBars, asset.ExitBars, meta.PricePrecision)
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", asset.Symbol, err)
		return report
	}
	report.MarkPrice, err = exchange.FetchMarkPrice(ctx, asset.Symbol)
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", asset.Symbol, err)
		return report
	}
	if account == nil {
		return report
	}
	position, err := strategy.FindPosition(*account, asset.Symbol)
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", asset.Symbol, err)
		return report
	}
	direction, exposure := strategy.InferPosition(position)
	report.Direction = direction.String()
	report.Exposure = exposure
	return report
}
