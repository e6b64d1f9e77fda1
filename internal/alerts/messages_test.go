package alerts

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMessages(t *testing.T) {
	got := EmergencyClose("BTCUSDT", "LONG", decimal.RequireFromString("0.5"), decimal.RequireFromString("99"), decimal.RequireFromString("100"))
	want := "[breakout] BTCUSDT LONG closed at market: mark 99 crossed exit 100, qty 0.5"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	got = Reentry("ETHUSDT", "SHORT", decimal.RequireFromString("1.2"), decimal.RequireFromString("2000"))
	if got != "[breakout] ETHUSDT added to SHORT: qty 1.2 at mark 2000" {
		t.Fatalf("unexpected reentry message %q", got)
	}
	got = UnitStopped("BTCUSDT", errors.New("asset not found"))
	if got != "[breakout] BTCUSDT stopped: asset not found" {
		t.Fatalf("unexpected stop message %q", got)
	}
}
