package store

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/mapping"
	"gorm.io/gorm"
)

// Repository implements mapping.Repository against the metadata store.
type Repository struct{ db *gorm.DB }

var _ mapping.Repository = (*Repository)(nil)

// NewRepository builds a Repository over db (normally store.DB).
func NewRepository(db *gorm.DB) *Repository { return &Repository{db: db} }

// FindMapping loads and unmarshals the persisted Mapping definition.
func (r *Repository) FindMapping(ctx context.Context, id string) (*mapping.Mapping, error) {
	var rec mappingRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("store: mapping %q not found", id)
		}
		return nil, errors.Wrapf(err, "store: find mapping %q", id)
	}

	var m mapping.Mapping
	if err := json.Unmarshal(rec.Definition, &m); err != nil {
		return nil, errors.Wrapf(err, "store: unmarshal mapping %q", id)
	}
	m.ID = rec.ID
	m.Name = rec.Name
	m.ConsecutiveConfig.LastValue = rec.LastConsecutive
	return &m, nil
}

// UpdateLastConsecutive conditionally persists newValue as the mapping's
// local counter high-water mark, spec.md §4.4's non-centralized mode: the
// UPDATE only applies when newValue is strictly greater than the value
// currently stored, so a concurrent writer that already advanced the
// counter further is never clobbered by a slower one. Zero rows affected
// is not itself an error — it also covers the lost-race case — so the
// mapping's existence is checked separately.
func (r *Repository) UpdateLastConsecutive(ctx context.Context, mappingID string, newValue int64) error {
	res := r.db.WithContext(ctx).Model(&mappingRecord{}).
		Where("id = ? AND last_consecutive < ?", mappingID, newValue).
		Update("last_consecutive", newValue)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "store: update last consecutive for mapping %q", mappingID)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&mappingRecord{}).Where("id = ?", mappingID).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "store: check mapping %q exists", mappingID)
	}
	if count == 0 {
		return errors.Newf("store: mapping %q not found", mappingID)
	}
	return nil
}

// Save upserts a Mapping's full definition. Not part of mapping.Repository
// (which is read-only) but used by administrative tooling to seed mappings.
func (r *Repository) Save(ctx context.Context, m *mapping.Mapping) error {
	body, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "store: marshal mapping")
	}
	rec := mappingRecord{ID: m.ID, Name: m.Name, Definition: body, LastConsecutive: m.ConsecutiveConfig.LastValue}
	return r.db.WithContext(ctx).Save(&rec).Error
}
