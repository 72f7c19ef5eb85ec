package decimalx

import "github.com/shopspring/decimal"

func MustFromString(s string) decimal.Decimal {
	f, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// ParseOrZero parses s, treating an empty string as zero.
// Exchange payloads leave optional numeric fields as "".
func ParseOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	f, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return f
}
