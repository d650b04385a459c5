// Package profile holds per-vendor ingest configuration: how canonical
// document identifiers are composed, how fields are normalized, and which
// delivery target the vendor's runs are shipped to.
package profile

import (
	"strings"
	"time"

	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/logger"
)

// DefaultIDPattern is the identifier template applied when a vendor has no
// custom pattern, or when a custom pattern fails evaluation.
const DefaultIDPattern = "vendor_id|sku|postal_code"

// Field names usable as id pattern placeholders.
var knownFields = map[string]bool{
	"vendor_id":   true,
	"sku":         true,
	"postal_code": true,
	"price":       true,
}

// Profile is per-vendor configuration. Pure data; validated at save time.
type Profile struct {
	VendorID  string
	Name      string
	IDPattern string

	// Postal code normalization rules
	PostcodeLength int
	ZeroPad        bool
	Uppercase      bool

	// Delivery target parameters, opaque to the engine
	TargetDatabase   string
	TargetContainer  string
	PartitionKeyPath string
	WriteMode        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Default returns the profile created on first encounter of a new vendor.
func Default(vendorID string) *Profile {
	now := time.Now()
	return &Profile{
		VendorID:         vendorID,
		Name:             "default",
		IDPattern:        DefaultIDPattern,
		PostcodeLength:   4,
		ZeroPad:          true,
		Uppercase:        false,
		PartitionKeyPath: "/id",
		WriteMode:        "Insert",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ValidatePattern checks an id pattern against the restricted template
// grammar: one or more known field names joined by '|'.
func ValidatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return errors.NewInvalidRequestError("id pattern is empty")
	}
	for _, field := range strings.Split(pattern, "|") {
		if !knownFields[strings.TrimSpace(field)] {
			return errors.NewInvalidRequestError("id pattern references unknown field %q", field)
		}
	}
	return nil
}

// BuildID evaluates the profile's id pattern over the given field values.
// A malformed pattern degrades to DefaultIDPattern rather than failing the
// batch; the fallback is logged once per offending call.
func BuildID(p *Profile, fields map[string]string) string {
	id, err := applyPattern(p.IDPattern, fields)
	if err != nil {
		logger.Warnw("Invalid id pattern, falling back to default",
			"vendor_id", p.VendorID,
			"id_pattern", p.IDPattern,
			"error", err,
		)
		id, _ = applyPattern(DefaultIDPattern, fields)
	}
	return id
}

func applyPattern(pattern string, fields map[string]string) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", errors.New("empty pattern")
	}
	parts := strings.Split(pattern, "|")
	values := make([]string, 0, len(parts))
	for _, field := range parts {
		field = strings.TrimSpace(field)
		value, ok := fields[field]
		if !ok {
			return "", errors.Newf("unknown field %q", field)
		}
		values = append(values, value)
	}
	return strings.Join(values, "|"), nil
}
