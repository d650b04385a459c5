// Package ingest implements the validation, normalization, and dedup pass
// that turns raw vendor records into canonical documents ready for delivery.
package ingest

// RawRecord is one row from a record source, as a field map. Keys are
// lowercased header/field names; values are unparsed strings.
type RawRecord map[string]string

// Document is a validated, normalized, uniquely-identified record.
// JSON field names match the exchange format consumed by the delivery tool.
type Document struct {
	ID         string  `json:"id"`
	VendorID   string  `json:"vendorId"`
	SKU        string  `json:"sku"`
	PostalCode string  `json:"postCode"`
	Price      float64 `json:"price"`
}

// Rejection reasons for rows dropped by the validation pass.
const (
	ReasonMissingSKU   = "missing_sku"
	ReasonInvalidSKU   = "invalid_sku"
	ReasonInvalidPrice = "invalid_price"
	ReasonDuplicateKey = "duplicate_key"
)

// Rejection records one dropped row: its 1-based position in the source
// order, the reason code, and a short diagnostic.
type Rejection struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Stats is the accounting tuple for one validation pass.
// RowsTotal == RowsValid + RowsInvalid always holds; duplicates count
// toward RowsInvalid.
type Stats struct {
	RowsTotal   int `json:"rows_total"`
	RowsValid   int `json:"rows_valid"`
	RowsInvalid int `json:"rows_invalid"`
	Duplicates  int `json:"duplicates"`
	UniqueKeys  int `json:"unique_keys"`
}
