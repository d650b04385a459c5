package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damian-dev1/freight-matrix-hn/ingest"
	"github.com/damian-dev1/freight-matrix-hn/profile"
)

func TestNormalizePostalCode_ZeroPadsNumericCodes(t *testing.T) {
	p := profile.Default("acme") // postcode_length=4, zero_pad=true

	assert.Equal(t, "0200", ingest.NormalizePostalCode("200", p))
	assert.Equal(t, "0042", ingest.NormalizePostalCode("42", p))
	assert.Equal(t, "3000", ingest.NormalizePostalCode("3000", p))
}

func TestNormalizePostalCode_NonNumericPassesThrough(t *testing.T) {
	p := profile.Default("acme")

	// Postal formats vary by region; non-numeric codes are never rejected
	assert.Equal(t, "AB12", ingest.NormalizePostalCode("AB12", p))
	assert.Equal(t, "SW1A 1AA", ingest.NormalizePostalCode(" SW1A 1AA ", p))
}

func TestNormalizePostalCode_NoTruncation(t *testing.T) {
	p := profile.Default("acme")

	// Longer than target length: returned as-is
	assert.Equal(t, "123456", ingest.NormalizePostalCode("123456", p))
}

func TestNormalizePostalCode_Uppercase(t *testing.T) {
	p := profile.Default("acme")
	p.Uppercase = true

	assert.Equal(t, "AB12", ingest.NormalizePostalCode("ab12", p))
}

func TestNormalizePostalCode_PaddingDisabled(t *testing.T) {
	p := profile.Default("acme")
	p.ZeroPad = false

	assert.Equal(t, "200", ingest.NormalizePostalCode("200", p))
}

func TestCoercePrice(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{"plain", "10.50", 10.50, false},
		{"integer", "7", 7, false},
		{"currency symbol", "$1,234.56", 1234.56, false},
		{"euro", "€99.90", 99.90, false},
		{"aud prefix", "AUD 15", 15, false},
		{"rounds to cents", "1.005", 1.0, false},
		{"quoted", `"12.00"`, 12.00, false},
		{"empty", "", 0, true},
		{"whitespace", "   ", 0, true},
		{"non-numeric", "abc", 0, true},
		{"negative", "-5.00", 0, true},
		{"nan", "NaN", 0, true},
		{"infinity", "Inf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ingest.CoercePrice(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestExtractSKU(t *testing.T) {
	sku, _, err := ingest.ExtractSKU(ingest.RawRecord{"sku": "  ABC-123  "})
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", sku)

	// Aliased field names
	sku, _, err = ingest.ExtractSKU(ingest.RawRecord{"product_code": "XY.9/1"})
	require.NoError(t, err)
	assert.Equal(t, "XY.9/1", sku)

	// Wrapping quotes stripped
	sku, _, err = ingest.ExtractSKU(ingest.RawRecord{"sku": `"Q-1"`})
	require.NoError(t, err)
	assert.Equal(t, "Q-1", sku)
}

func TestExtractSKU_Rejections(t *testing.T) {
	_, reason, err := ingest.ExtractSKU(ingest.RawRecord{})
	require.Error(t, err)
	assert.Equal(t, ingest.ReasonMissingSKU, reason)

	_, reason, err = ingest.ExtractSKU(ingest.RawRecord{"sku": "   "})
	require.Error(t, err)
	assert.Equal(t, ingest.ReasonMissingSKU, reason)

	_, reason, err = ingest.ExtractSKU(ingest.RawRecord{"sku": "bad sku!"})
	require.Error(t, err)
	assert.Equal(t, ingest.ReasonInvalidSKU, reason)

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	_, reason, err = ingest.ExtractSKU(ingest.RawRecord{"sku": string(long)})
	require.Error(t, err)
	assert.Equal(t, ingest.ReasonInvalidSKU, reason)
}
