package monnify

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

const koboPerNaira = 100

// ParseNairaToKobo converts a decimal naira string ("500", "500.00") into
// kobo. Monnify reports amounts as decimals; all internal arithmetic is in
// integer kobo to avoid float drift on money.
func ParseNairaToKobo(raw string) (int64, error) {
	normalized := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if normalized == "" {
		return 0, fmt.Errorf("empty amount")
	}
	rat, ok := new(big.Rat).SetString(normalized)
	if !ok {
		return 0, fmt.Errorf("invalid amount: %q", raw)
	}
	kobo := new(big.Rat).Mul(rat, big.NewRat(koboPerNaira, 1))
	if !kobo.IsInt() {
		return 0, fmt.Errorf("amount has sub-kobo precision: %q", raw)
	}
	return kobo.Num().Int64(), nil
}

// FormatKoboAsNaira renders kobo as a two-decimal naira string.
func FormatKoboAsNaira(kobo int64) string {
	return new(big.Rat).SetFrac64(kobo, koboPerNaira).FloatString(2)
}

// Amount accepts both JSON numbers and strings, which Monnify has used
// interchangeably across payload generations.
type Amount int64

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	kobo, err := ParseNairaToKobo(s)
	if err != nil {
		return err
	}
	*a = Amount(kobo)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatKoboAsNaira(int64(a)))
}

// Kobo returns the amount in integer kobo.
func (a Amount) Kobo() int64 { return int64(a) }
