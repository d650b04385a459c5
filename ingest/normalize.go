package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/profile"
)

// Field aliases accepted from record sources. Headers are lowercased before
// lookup, so only lowercase aliases appear here.
var (
	skuAliases    = []string{"sku", "product_code", "productcode", "item"}
	postalAliases = []string{"postal_code", "postcode", "post_code", "zip"}
	priceAliases  = []string{"price", "unit_price", "amount"}
)

const maxSKULength = 64

// cleanString trims surrounding whitespace and one layer of wrapping quotes.
func cleanString(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func lookupAlias(rec RawRecord, aliases []string) (string, bool) {
	for _, key := range aliases {
		if v, ok := rec[key]; ok {
			return v, true
		}
	}
	return "", false
}

// ExtractSKU returns the record's SKU. A missing or empty SKU is rejected
// with ReasonMissingSKU; one with a bad shape with ReasonInvalidSKU.
func ExtractSKU(rec RawRecord) (string, string, error) {
	raw, _ := lookupAlias(rec, skuAliases)
	sku := cleanString(raw)
	if sku == "" {
		return "", ReasonMissingSKU, errors.New("sku is missing or empty")
	}
	if len(sku) > maxSKULength {
		return "", ReasonInvalidSKU, errors.Newf("sku exceeds %d characters", maxSKULength)
	}
	for _, r := range sku {
		if !isSKURune(r) {
			return "", ReasonInvalidSKU, errors.Newf("sku contains invalid character %q", r)
		}
	}
	return sku, "", nil
}

func isSKURune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.' || r == '/':
		return true
	}
	return false
}

// NormalizePostalCode trims, optionally uppercases, and zero-pads an
// all-digit code to the profile's target length. Non-numeric codes pass
// through unchanged; postal formats vary too much by region to reject them.
func NormalizePostalCode(raw string, p *profile.Profile) string {
	code := cleanString(raw)
	if p.Uppercase {
		code = strings.ToUpper(code)
	}
	if code == "" || !isAllDigits(code) {
		return code
	}
	if p.ZeroPad && p.PostcodeLength > 0 && len(code) <= p.PostcodeLength {
		code = strings.Repeat("0", p.PostcodeLength-len(code)) + code
	}
	return code
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CoercePrice parses a price field, tolerating currency symbols and
// thousands separators. Missing, non-numeric, negative, or non-finite
// values reject the row. The result is rounded to two decimal places.
func CoercePrice(raw string) (float64, error) {
	s := cleanString(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Trim(s, "$€£ ")
	s = strings.TrimSuffix(strings.TrimPrefix(strings.ToUpper(s), "AUD"), "AUD")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("price is missing or empty")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Newf("price %q is not numeric", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Newf("price %q is not finite", raw)
	}
	if v < 0 {
		return 0, errors.Newf("price %v is negative", v)
	}
	return math.Round(v*100) / 100, nil
}
