package store

import (
	"time"

	"gorm.io/datatypes"
)

// mappingRecord is the GORM model backing mapping.Repository: the
// Mapping's structured fields live in the JSON blob, matching spec.md
// §3.1's "a Mapping is loaded once per execution and treated as
// immutable" — the store only needs to round-trip it, never query inside
// it.
type mappingRecord struct {
	ID              string `gorm:"primaryKey;size:100"`
	Name            string `gorm:"size:255"`
	Definition      datatypes.JSON
	LastConsecutive int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (mappingRecord) TableName() string { return "docxfer_mappings" }

// executionRecord is the GORM model backing execution.Store: the scalar
// counters are real columns (queryable for dashboards/reporting), Details
// is a JSON blob (spec.md §3.3).
type executionRecord struct {
	ID                string `gorm:"primaryKey;size:100"`
	MappingID         string `gorm:"size:100;index"`
	Status            string `gorm:"size:20;index"`
	StartTime         time.Time
	EndTime           time.Time
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	SkippedRecords    int
	Details           datatypes.JSON
	ErrorDetails      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (executionRecord) TableName() string { return "docxfer_executions" }

// consecutiveRecord is the GORM model backing consecutive.Store.
// CompareAndSwap conditions its UPDATE directly on CurrentValue still
// matching the caller's expected value (spec.md §4.4 "compare-and-set
// semantics") — no separate version column needed.
type consecutiveRecord struct {
	Name         string `gorm:"primaryKey;size:100"`
	Format       string
	CurrentValue int64
	StartValue   int64
	Increment    int64
	Active       bool
	Segments     datatypes.JSON
	Reservations datatypes.JSON
	History      datatypes.JSON
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (consecutiveRecord) TableName() string { return "docxfer_consecutives" }
