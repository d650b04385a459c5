package ingest

import (
	"strconv"

	"github.com/damian-dev1/freight-matrix-hn/profile"
)

// IDFields exposes a document's canonical values under the pattern
// placeholder names. Rematerialization relies on this mapping producing the
// same ids from audited rows as the original pass did.
func IDFields(doc Document) map[string]string {
	return map[string]string{
		"vendor_id":   doc.VendorID,
		"sku":         doc.SKU,
		"postal_code": doc.PostalCode,
		"price":       strconv.FormatFloat(doc.Price, 'f', -1, 64),
	}
}

type dedupKey struct {
	vendorID   string
	sku        string
	postalCode string
}

// Result is the output of one validation pass over a batch.
type Result struct {
	Documents  []Document
	Stats      Stats
	Rejections []Rejection
}

// Pass runs the dedup/validation pass over one batch of raw records, in
// source order. Row-level failures are counted and never abort the batch.
// The pass is deterministic and pure: the same records and profile always
// produce the same documents and stats, which is what makes retry-time
// payload regeneration possible without the original source file.
func Pass(p *profile.Profile, records []RawRecord) Result {
	res := Result{Stats: Stats{RowsTotal: len(records)}}
	seen := make(map[dedupKey]bool)
	uniqueSKUs := make(map[string]bool)

	for i, rec := range records {
		row := i + 1

		sku, reason, err := ExtractSKU(rec)
		if err != nil {
			res.reject(row, reason, err.Error())
			continue
		}

		rawPostal, _ := lookupAlias(rec, postalAliases)
		postalCode := NormalizePostalCode(rawPostal, p)

		rawPrice, _ := lookupAlias(rec, priceAliases)
		price, err := CoercePrice(rawPrice)
		if err != nil {
			res.reject(row, ReasonInvalidPrice, err.Error())
			continue
		}

		// First occurrence wins; later rows with the same key are dropped
		key := dedupKey{vendorID: p.VendorID, sku: sku, postalCode: postalCode}
		if seen[key] {
			res.Stats.Duplicates++
			res.reject(row, ReasonDuplicateKey, "duplicate of earlier row")
			continue
		}
		seen[key] = true
		uniqueSKUs[sku] = true

		doc := Document{
			VendorID:   p.VendorID,
			SKU:        sku,
			PostalCode: postalCode,
			Price:      price,
		}
		doc.ID = profile.BuildID(p, IDFields(doc))

		res.Documents = append(res.Documents, doc)
		res.Stats.RowsValid++
	}

	res.Stats.UniqueKeys = len(uniqueSKUs)
	return res
}

func (r *Result) reject(row int, reason, detail string) {
	r.Stats.RowsInvalid++
	r.Rejections = append(r.Rejections, Rejection{Row: row, Reason: reason, Detail: detail})
}
