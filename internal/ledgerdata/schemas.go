package ledgerdata

import "github.com/gabapcia/ledgerwatch/internal/normalizer"

// DefaultSchemas declares the normalization tables for the collections this
// client reads. Each field lists its canonical name; candidate keys default
// to camelCase then snake_case, with the positional slot as the last resort
// for node versions that emitted tuple-shaped records. Fixed-point scales
// are documented per field and applied only here.
func DefaultSchemas() map[string]normalizer.Schema {
	return map[string]normalizer.Schema{
		"policies": {
			Name: "policy",
			Fields: []normalizer.FieldSpec{
				{Name: "policyId", Position: 0, Kind: normalizer.KindString, Required: true},
				{Name: "holder", Position: 1, Kind: normalizer.KindString, Required: true},
				{Name: "status", Position: 2, Kind: normalizer.KindEnum, Required: true},
				{Name: "totalShares", Position: 3, Kind: normalizer.KindInteger, Required: true},
				// premiumPerShare is stored as millionths of a unit.
				{Name: "premiumPerShare", Position: 4, Kind: normalizer.KindDecimal, Scale: 6, Required: true},
				// lowestAsk tracks "minimum so far": initialized to a near-max
				// extreme meaning "never observed".
				{Name: "lowestAsk", Position: 5, Kind: normalizer.KindDecimal, Scale: 6, Sentinel: normalizer.SentinelHigh},
				{Name: "updatedAtHeight", Position: 6, Kind: normalizer.KindInteger},
			},
		},
		"requests": {
			Name: "request",
			Fields: []normalizer.FieldSpec{
				{Name: "requestId", Position: 0, Kind: normalizer.KindString, Required: true},
				{Name: "requester", Position: 1, Kind: normalizer.KindString, Required: true},
				{Name: "state", Position: 2, Kind: normalizer.KindEnum, Required: true},
				// amount is stored in tenths of a unit.
				{Name: "amount", Position: 3, Kind: normalizer.KindDecimal, Scale: 1, Required: true},
				{Name: "createdAtHeight", Position: 4, Kind: normalizer.KindInteger},
			},
		},
		"oracleStates": {
			Name: "oracleState",
			Fields: []normalizer.FieldSpec{
				{Name: "feed", Position: 0, Kind: normalizer.KindString, Required: true},
				// quotes are stored in thousandths of a unit.
				{Name: "lastQuote", Position: 1, Kind: normalizer.KindDecimal, Scale: 3, Required: true},
				// highestQuote tracks "maximum so far": a near-min extreme
				// means "never observed".
				{Name: "highestQuote", Position: 2, Kind: normalizer.KindDecimal, Scale: 3, Sentinel: normalizer.SentinelLow, SentinelThreshold: -normalizer.DefaultHighSentinel},
				{Name: "lowestQuote", Position: 3, Kind: normalizer.KindDecimal, Scale: 3, Sentinel: normalizer.SentinelHigh},
				{Name: "observedAtHeight", Position: 4, Kind: normalizer.KindInteger},
			},
		},
	}
}
