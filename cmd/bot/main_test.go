package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bn-breakout-bot/internal/app"
	"bn-breakout-bot/internal/journal"
	"bn-breakout-bot/internal/journal/sqlite"
	"bn-breakout-bot/internal/strategy"

	"github.com/shopspring/decimal"
)

func TestRootFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "log-level"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Fatalf("missing --%s flag", name)
		}
	}
	if got := cmd.PersistentFlags().ShorthandLookup("c"); got == nil || got.Name != "config" {
		t.Fatalf("expected -c to alias --config")
	}
	for _, name := range []string{"run", "levels", "journal", "version"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("missing %s subcommand", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "bot dev\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestMissingConfigWritesTemplate(t *testing.T) {
	wd, wdErr := os.Getwd()
	if wdErr != nil {
		t.Fatal(wdErr)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	opts := &rootOptions{configPath: filepath.Join(t.TempDir(), "config.yaml")}
	_, _, err := opts.load()
	if err == nil || !strings.Contains(err.Error(), "wrote a config template") {
		t.Fatalf("expected template notice, got %v", err)
	}
}

func TestWriteLevels(t *testing.T) {
	var out bytes.Buffer
	reports := []app.LevelsReport{
		{
			Asset: "BTCUSDT",
			Levels: strategy.PriceLevels{
				LongEntry:  decimal.NewFromInt(119),
				LongExit:   decimal.NewFromInt(100),
				ShortEntry: decimal.NewFromInt(90),
				ShortExit:  decimal.NewFromInt(119),
			},
			MarkPrice: decimal.NewFromInt(110),
			Direction: "LONG",
			Exposure:  decimal.NewFromInt(50),
		},
		{Asset: "NOPEUSDT", Err: errors.New("asset not found")},
	}
	if err := writeLevels(&out, reports); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", out.String())
	}
	if fields := strings.Fields(lines[1]); strings.Join(fields, " ") != "BTCUSDT 119 100 90 119 110 LONG 50" {
		t.Fatalf("unexpected row %q", lines[1])
	}
	if !strings.Contains(lines[2], "error: asset not found") {
		t.Fatalf("unexpected error row %q", lines[2])
	}
}

func TestJournalCommandReadsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []journal.Entry{
		{Time: ts, Asset: "BTCUSDT", Error: "compute levels: insufficient bar history"},
		{
			Time:       ts.Add(15 * time.Second),
			Asset:      "BTCUSDT",
			LongEntry:  decimal.NewFromInt(119),
			LongExit:   decimal.NewFromInt(100),
			ShortEntry: decimal.NewFromInt(90),
			ShortExit:  decimal.NewFromInt(119),
			MarkPrice:  decimal.NewFromInt(110),
			Direction:  "NONE",
			CanTrade:   true,
			Quantity:   decimal.RequireFromString("0.455"),
			Action:     "BRACKET",
			Orders: []journal.Order{
				{Side: "BUY", Type: "STOP_MARKET", StopPrice: "119", Quantity: "0.455", Reason: "long_entry", OrderID: "7"},
			},
		},
	}
	for _, e := range entries {
		if err := store.Record(context.Background(), e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	_ = store.Close()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"journal", "btcusdt", "--db", path, "-n", "5"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if !strings.Contains(lines[0], "BTCUSDT NONE mark=110 levels=119/100/90/119") {
		t.Fatalf("expected newest decision first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "long_entry BUY STOP_MARKET stop=119 qty=0.455 id=7") {
		t.Fatalf("unexpected order line %q", lines[1])
	}
	if !strings.Contains(lines[2], "aborted: compute levels") {
		t.Fatalf("unexpected abort line %q", lines[2])
	}
}
