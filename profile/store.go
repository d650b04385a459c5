package profile

import (
	"database/sql"
	"time"

	"github.com/damian-dev1/freight-matrix-hn/errors"
)

// Store persists vendor profiles in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a profile store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Resolve returns the profile for vendorID, creating and persisting the
// default profile on first encounter. First-writer-wins under concurrent
// creation: the insert is a no-op if another writer got there first, and
// the persisted row is re-read in all cases.
func (s *Store) Resolve(vendorID string) (*Profile, error) {
	if vendorID == "" {
		return nil, errors.NewInvalidRequestError("vendor id is empty")
	}

	p, err := s.Get(vendorID)
	if err == nil {
		return p, nil
	}
	if !errors.IsNotFoundError(err) {
		return nil, err
	}

	draft := Default(vendorID)
	_, err = s.db.Exec(`
		INSERT INTO vendor_profiles (
			vendor_id, name, id_pattern, postcode_length, zero_pad, uppercase,
			target_database, target_container, partition_key_path, write_mode,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vendor_id) DO NOTHING`,
		draft.VendorID, draft.Name, draft.IDPattern, draft.PostcodeLength,
		draft.ZeroPad, draft.Uppercase,
		draft.TargetDatabase, draft.TargetContainer,
		draft.PartitionKeyPath, draft.WriteMode,
		draft.CreatedAt, draft.UpdatedAt,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create default profile for %s", vendorID)
	}

	// Re-read so a racing creator's row wins over our in-memory draft
	return s.Get(vendorID)
}

// Get returns the profile for vendorID or ErrNotFound.
func (s *Store) Get(vendorID string) (*Profile, error) {
	row := s.db.QueryRow(`
		SELECT vendor_id, name, id_pattern, postcode_length, zero_pad, uppercase,
		       target_database, target_container, partition_key_path, write_mode,
		       created_at, updated_at
		FROM vendor_profiles WHERE vendor_id = ?`, vendorID)

	var p Profile
	err := row.Scan(
		&p.VendorID, &p.Name, &p.IDPattern, &p.PostcodeLength, &p.ZeroPad, &p.Uppercase,
		&p.TargetDatabase, &p.TargetContainer, &p.PartitionKeyPath, &p.WriteMode,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("profile %s", vendorID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get profile %s", vendorID)
	}
	return &p, nil
}

// Save upserts an explicitly edited profile. The id pattern is validated
// here so malformed templates never reach the pipeline unlogged.
func (s *Store) Save(p *Profile) error {
	if p.VendorID == "" {
		return errors.NewInvalidRequestError("vendor id is empty")
	}
	if err := ValidatePattern(p.IDPattern); err != nil {
		return err
	}
	if p.Name == "" {
		p.Name = "default"
	}

	p.UpdatedAt = time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	_, err := s.db.Exec(`
		INSERT INTO vendor_profiles (
			vendor_id, name, id_pattern, postcode_length, zero_pad, uppercase,
			target_database, target_container, partition_key_path, write_mode,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vendor_id) DO UPDATE SET
			name = excluded.name,
			id_pattern = excluded.id_pattern,
			postcode_length = excluded.postcode_length,
			zero_pad = excluded.zero_pad,
			uppercase = excluded.uppercase,
			target_database = excluded.target_database,
			target_container = excluded.target_container,
			partition_key_path = excluded.partition_key_path,
			write_mode = excluded.write_mode,
			updated_at = excluded.updated_at`,
		p.VendorID, p.Name, p.IDPattern, p.PostcodeLength, p.ZeroPad, p.Uppercase,
		p.TargetDatabase, p.TargetContainer, p.PartitionKeyPath, p.WriteMode,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save profile %s", p.VendorID)
	}
	return nil
}

// List returns all profiles ordered by vendor id.
func (s *Store) List() ([]*Profile, error) {
	rows, err := s.db.Query(`
		SELECT vendor_id, name, id_pattern, postcode_length, zero_pad, uppercase,
		       target_database, target_container, partition_key_path, write_mode,
		       created_at, updated_at
		FROM vendor_profiles ORDER BY vendor_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list profiles")
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(
			&p.VendorID, &p.Name, &p.IDPattern, &p.PostcodeLength, &p.ZeroPad, &p.Uppercase,
			&p.TargetDatabase, &p.TargetContainer, &p.PartitionKeyPath, &p.WriteMode,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan profile")
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}
