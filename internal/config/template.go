package config

import (
	"os"
	"path/filepath"
)

const template = `# Credentials may also come from BN_API_KEY / BN_API_SECRET.
connection:
  api_key: "<YOUR API KEY>"
  api_secret: "<YOUR API SECRET>"
  testnet: true

log:
  level: info

trading:
  symbols: [BTCUSDT, ETHUSDT]
  entry_bars: 20
  exit_bars: 10
  # Portion of the available balance committed by each entry.
  each_trade: 0.05
  # Portion of the total wallet balance one symbol may hold as margin.
  max_per_symbol: 0.5
  # Add to a held position after this many cycles without an exit; 0 disables.
  enter_more_after_break_bars: 8
  interval: 1d
  poll_interval: 15s

metrics:
  enabled: true
  address: 127.0.0.1:9001

journal:
  enabled: false
  sqlite_path: data/journal.db

telegram:
  enabled: false
`

// WriteTemplate writes a starter config to path, creating parent directories.
func WriteTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
