// Package consecutive implements the Consecutive Reservation Service
// (component C, spec.md §4.4): atomic allocation, TTL-bounded reservation,
// commit/cancel, segmented counters, append-only history, and metrics.
package consecutive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/forbearing/docxfer/types"
)

var paddedValueToken = regexp.MustCompile(`\{VALUE:(\d+)\}`)

// Consecutive is the counter document described in spec.md §3.2/§6.
type Consecutive struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Format       string `json:"format"`
	CurrentValue int64  `json:"currentValue"`
	StartValue   int64  `json:"startValue"`
	Increment    int64  `json:"increment"`
	Active       bool   `json:"active"`

	Segments Segments `json:"segments"`

	Reservations []Reservation        `json:"reservations"`
	History      []types.HistoryEntry `json:"history"`
}

// Segments holds the optional per-segment counter values, spec.md §3.2.
type Segments struct {
	Enabled bool             `json:"enabled"`
	Values  map[string]int64 `json:"values"`
}

// Reservation is one outstanding or resolved allocation, spec.md §3.2.
type Reservation struct {
	ReservationID string                   `json:"reservationId"`
	Values        []ReservedValue          `json:"values"`
	CreatedAt     time.Time                `json:"createdAt"`
	ExpiresAt     time.Time                `json:"expiresAt"`
	Status        types.ReservationStatus  `json:"status"`
	ReservedBy    string                   `json:"reservedBy"`
	Segment       string                   `json:"segment,omitempty"`
}

// ReservedValue is one allocated numeric value together with its formatted
// rendering under the counter's Format template.
type ReservedValue struct {
	Numeric   int64  `json:"numeric"`
	Formatted string `json:"formatted"`
}

// Format renders value under the counter's template. Supported tokens:
// {PREFIX}, {VALUE}, {VALUE:N} (zero-padded to N digits), {YEAR}, {MONTH}
// (2-digit), {DAY} (2-digit) — spec.md §4.4.
func (c *Consecutive) Format(value int64, prefix string, now time.Time) string {
	return FormatTemplate(c.format(), value, prefix, now)
}

func (c *Consecutive) format() string {
	if len(c.Format) == 0 {
		return "{VALUE}"
	}
	return c.Format
}

// FormatTemplate is the standalone template renderer Format applies,
// given any template string, usable from mapping.ConsecutiveConfig.Pattern
// directly without constructing a Consecutive.
func FormatTemplate(template string, value int64, prefix string, now time.Time) string {
	out := template
	out = strings.ReplaceAll(out, "{PREFIX}", prefix)
	out = strings.ReplaceAll(out, "{YEAR}", strconv.Itoa(now.Year()))
	out = strings.ReplaceAll(out, "{MONTH}", fmt.Sprintf("%02d", int(now.Month())))
	out = strings.ReplaceAll(out, "{DAY}", fmt.Sprintf("%02d", now.Day()))
	out = paddedValueToken.ReplaceAllStringFunc(out, func(tok string) string {
		n, err := strconv.Atoi(paddedValueToken.FindStringSubmatch(tok)[1])
		if err != nil {
			return tok
		}
		return fmt.Sprintf("%0*d", n, value)
	})
	out = strings.ReplaceAll(out, "{VALUE}", strconv.FormatInt(value, 10))
	return out
}
