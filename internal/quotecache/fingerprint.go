package quotecache

import (
	"fmt"
	"strconv"
	"strings"
)

// Fingerprint identifies a quote request.
type Fingerprint struct {
	Symbol       string
	ContractType string
	Amount       float64
	Duration     int
	DurationUnit string
	Barrier      string // optional
}

// Key returns the normalized cache key, e.g. "R_100|call|10|60s". Symbol case,
// contract type case and float formatting differences map to the same key.
func (f Fingerprint) Key() string {
	unit := strings.ToLower(strings.TrimSpace(f.DurationUnit))
	if unit == "" {
		unit = "s"
	}
	key := fmt.Sprintf("%s|%s|%s|%d%s",
		strings.ToUpper(strings.TrimSpace(f.Symbol)),
		strings.ToLower(strings.TrimSpace(f.ContractType)),
		strconv.FormatFloat(f.Amount, 'f', -1, 64),
		f.Duration,
		unit,
	)
	if b := strings.TrimSpace(f.Barrier); b != "" {
		key += "|" + b
	}
	return key
}

func (f Fingerprint) String() string {
	return f.Key()
}
