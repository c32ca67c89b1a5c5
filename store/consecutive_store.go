package store

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/consecutive"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConsecutiveStore implements consecutive.Store against the metadata
// store, following forbearing-gst's pattern of a GORM conditional UPDATE
// for optimistic concurrency (no SELECT ... FOR UPDATE, no app-level
// mutex beyond consecutive.Service's own Lock).
type ConsecutiveStore struct{ db *gorm.DB }

var _ consecutive.Store = (*ConsecutiveStore)(nil)

// NewConsecutiveStore builds a ConsecutiveStore over db (normally store.DB).
func NewConsecutiveStore(db *gorm.DB) *ConsecutiveStore { return &ConsecutiveStore{db: db} }

// Load returns the named counter, creating it with the given seed values
// on first use (spec.md §4.4 "a counter is created lazily on first
// allocation request").
func (s *ConsecutiveStore) Load(ctx context.Context, name string, seedStart, seedIncrement int64) (*consecutive.Consecutive, error) {
	var rec consecutiveRecord
	err := s.db.WithContext(ctx).First(&rec, "name = ?", name).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		seeded := &consecutive.Consecutive{
			ID: name, Name: name, CurrentValue: seedStart, StartValue: seedStart,
			Increment: seedIncrement, Active: true,
		}
		if err := s.create(ctx, seeded); err != nil {
			return nil, err
		}
		return seeded, nil
	case err != nil:
		return nil, errors.Wrapf(err, "store: load counter %q", name)
	}
	return recordToConsecutive(&rec)
}

// CompareAndSwap atomically replaces the stored counter with next,
// conditioned on the stored current_value still matching expectCurrent.
func (s *ConsecutiveStore) CompareAndSwap(ctx context.Context, next *consecutive.Consecutive, expectCurrent int64) (bool, error) {
	row, err := consecutiveToRecord(next)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Model(&consecutiveRecord{}).
		Where("name = ? AND current_value = ?", next.Name, expectCurrent).
		Updates(map[string]any{
			"format": row.Format, "current_value": row.CurrentValue,
			"start_value": row.StartValue, "increment": row.Increment, "active": row.Active,
			"segments": row.Segments, "reservations": row.Reservations, "history": row.History,
		})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "store: compare-and-swap counter %q", next.Name)
	}
	return res.RowsAffected > 0, nil
}

func (s *ConsecutiveStore) create(ctx context.Context, c *consecutive.Consecutive) error {
	row, err := consecutiveToRecord(c)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return errors.Wrapf(err, "store: create counter %q", c.Name)
	}
	return nil
}

func consecutiveToRecord(c *consecutive.Consecutive) (consecutiveRecord, error) {
	segments, err := json.Marshal(c.Segments)
	if err != nil {
		return consecutiveRecord{}, errors.Wrap(err, "store: marshal segments")
	}
	reservations, err := json.Marshal(c.Reservations)
	if err != nil {
		return consecutiveRecord{}, errors.Wrap(err, "store: marshal reservations")
	}
	history, err := json.Marshal(c.History)
	if err != nil {
		return consecutiveRecord{}, errors.Wrap(err, "store: marshal history")
	}
	return consecutiveRecord{
		Name: c.Name, Format: c.Format, CurrentValue: c.CurrentValue,
		StartValue: c.StartValue, Increment: c.Increment, Active: c.Active,
		Segments: segments, Reservations: reservations, History: history,
	}, nil
}

func recordToConsecutive(rec *consecutiveRecord) (*consecutive.Consecutive, error) {
	c := &consecutive.Consecutive{
		ID: rec.Name, Name: rec.Name, Format: rec.Format, CurrentValue: rec.CurrentValue,
		StartValue: rec.StartValue, Increment: rec.Increment, Active: rec.Active,
	}
	if err := json.Unmarshal(rec.Segments, &c.Segments); err != nil {
		return nil, errors.Wrap(err, "store: unmarshal segments")
	}
	if err := json.Unmarshal(rec.Reservations, &c.Reservations); err != nil {
		return nil, errors.Wrap(err, "store: unmarshal reservations")
	}
	if err := json.Unmarshal(rec.History, &c.History); err != nil {
		return nil, errors.Wrap(err, "store: unmarshal history")
	}
	return c, nil
}
