package twitter

import "strings"

var (
	defaultProjectNames = map[string]string{
		"BTC":   "Bitcoin",
		"ETH":   "Ethereum",
		"SOL":   "Solana",
		"LINK":  "Chainlink",
		"VVV":   "AskVenice",
		"HYPER": "HyperliquidX",
		"AAVE":  "Aave",
	}

	defaultOfficialHandles = map[string]string{
		"BTC":   "bitcoin",
		"ETH":   "ethereum",
		"SOL":   "solana",
		"LINK":  "chainlink",
		"VVV":   "AskVenice",
		"HYPER": "HyperliquidX",
		"AAVE":  "aave",
	}
)

// Directory maps tickers to project names and official X accounts.
// Immutable after construction; unlisted tickers are never guessed.
type Directory struct {
	projectNames    map[string]string
	officialHandles map[string]string
}

// DefaultDirectory returns the built-in curated tables
func DefaultDirectory() *Directory {
	return NewDirectory(nil, nil)
}

// NewDirectory merges extra entries over the built-in tables. Keys are normalized tickers.
func NewDirectory(extraNames, extraHandles map[string]string) *Directory {
	d := &Directory{
		projectNames:    make(map[string]string, len(defaultProjectNames)+len(extraNames)),
		officialHandles: make(map[string]string, len(defaultOfficialHandles)+len(extraHandles)),
	}

	for k, v := range defaultProjectNames {
		d.projectNames[k] = v
	}
	for k, v := range defaultOfficialHandles {
		d.officialHandles[k] = v
	}

	for k, v := range extraNames {
		if t, name := NormalizeTicker(k), strings.TrimSpace(v); t != "" && name != "" {
			d.projectNames[t] = name
		}
	}
	for k, v := range extraHandles {
		if t, h := NormalizeTicker(k), strings.TrimPrefix(strings.TrimSpace(v), "@"); t != "" && h != "" {
			d.officialHandles[t] = h
		}
	}

	return d
}

// ProjectName returns the curated project name for ticker
func (d *Directory) ProjectName(ticker string) (string, bool) {
	name, ok := d.projectNames[ticker]
	return name, ok
}

// OfficialHandle returns the curated official account (without @) for ticker
func (d *Directory) OfficialHandle(ticker string) (string, bool) {
	h, ok := d.officialHandles[ticker]
	return h, ok
}
