package consecutive

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/logger"
	"github.com/forbearing/docxfer/metrics"
	"github.com/forbearing/docxfer/types"
	"github.com/google/uuid"
)

// maxCASRetries bounds the compare-and-set retry loop every mutating
// operation runs; a counter under contention this heavy after that many
// attempts returns an error rather than spinning forever.
const maxCASRetries = 10

// service implements Service over a Store, optionally guarded by a
// distributed Lock for multi-process deployments (spec.md §4.4
// "concurrency contract": all mutating operations are serialised at the
// counter id through a compare-and-set loop").
type service struct {
	store          Store
	lock           Lock // nil disables the distributed lock; CAS retries still serialise within one process
	reservationTTL time.Duration

	knownMu sync.Mutex
	known   map[string]struct{} // counter names this instance has touched, for SweepExpired
}

var _ Service = (*service)(nil)

// NewService builds a Service backed by store. lock may be nil when no
// distributed coordination is required (e.g. a single-instance deployment).
func NewService(store Store, lock Lock, reservationTTL time.Duration) Service {
	if reservationTTL <= 0 {
		reservationTTL = 5 * time.Minute
	}
	return &service{store: store, lock: lock, reservationTTL: reservationTTL, known: map[string]struct{}{}}
}

func (s *service) remember(name string) {
	s.knownMu.Lock()
	s.known[name] = struct{}{}
	s.knownMu.Unlock()
}

// withLock runs fn while holding the distributed lock for name, if a Lock
// was configured; otherwise it runs fn directly, relying solely on the CAS
// retry loop for serialization.
func (s *service) withLock(ctx context.Context, name string, fn func() error) error {
	if s.lock == nil {
		return fn()
	}
	ok, err := s.lock.TryLock(ctx, name, 10*time.Second)
	if err != nil {
		return errors.Wrap(err, "consecutive: lock acquire failed")
	}
	if !ok {
		return errors.Newf("consecutive: counter %q is locked by another process", name)
	}
	defer func() { _ = s.lock.Unlock(ctx, name) }()
	return fn()
}

func (s *service) Allocate(ctx context.Context, name string) (ReservedValue, error) {
	s.remember(name)
	var result ReservedValue
	err := s.withLock(ctx, name, func() error {
		return s.retryCAS(ctx, name, func(c *Consecutive) error {
			next := c.CurrentValue + c.Increment
			c.CurrentValue = next
			c.History = append(c.History, types.HistoryEntry{
				Date: now(), Action: types.HistoryIncremented, Value: next,
			})
			result = ReservedValue{Numeric: next, Formatted: c.Format(next, "", now())}
			return nil
		})
	})
	if err != nil {
		return ReservedValue{}, err
	}
	metrics.ConsecutiveIncrementsTotal.WithLabelValues(name).Inc()
	logger.Consecutive.Debugw("allocated value", "counter", name, "value", result.Numeric)
	return result, nil
}

func (s *service) Reserve(ctx context.Context, name string, n int, segment, reservedBy string) (*Reservation, error) {
	if n <= 0 {
		return nil, errors.Newf("consecutive: reserve count must be positive, got %d", n)
	}
	s.remember(name)
	var reservation Reservation
	err := s.withLock(ctx, name, func() error {
		return s.retryCAS(ctx, name, func(c *Consecutive) error {
			values := make([]ReservedValue, 0, n)
			current := c.currentValueFor(segment)
			for range n {
				current += c.Increment
				values = append(values, ReservedValue{Numeric: current, Formatted: c.Format(current, "", now())})
			}
			c.setCurrentValueFor(segment, current)

			reservation = Reservation{
				ReservationID: uuid.NewString(),
				Values:        values,
				CreatedAt:     now(),
				ExpiresAt:     now().Add(s.reservationTTL),
				Status:        types.ReservationReserved,
				ReservedBy:    reservedBy,
				Segment:       segment,
			}
			c.Reservations = append(c.Reservations, reservation)
			c.History = append(c.History, types.HistoryEntry{
				Date: now(), Action: types.HistoryIncremented, Value: current, Segment: segment,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.ConsecutiveIncrementsTotal.WithLabelValues(name).Add(float64(n))
	logger.Consecutive.Infow("reserved values", "counter", name, "reservationId", reservation.ReservationID, "count", n)
	return &reservation, nil
}

func (s *service) Commit(ctx context.Context, name, reservationID string) error {
	return s.withLock(ctx, name, func() error {
		return s.retryCAS(ctx, name, func(c *Consecutive) error {
			r := c.findReservation(reservationID)
			if r == nil {
				return nil // idempotent: already resolved or never existed under this process's view
			}
			if r.Status == types.ReservationCommitted {
				return nil // idempotent
			}
			r.Status = types.ReservationCommitted
			c.History = append(c.History, types.HistoryEntry{Date: now(), Action: types.HistoryCommitted})
			return nil
		})
	})
}

func (s *service) Cancel(ctx context.Context, name, reservationID string) error {
	return s.withLock(ctx, name, func() error {
		return s.retryCAS(ctx, name, func(c *Consecutive) error {
			r := c.findReservation(reservationID)
			if r == nil || r.Status == types.ReservationCancelled {
				return nil // idempotent
			}
			r.Status = types.ReservationCancelled
			c.History = append(c.History, types.HistoryEntry{Date: now(), Action: types.HistoryCancelled})
			return nil
		})
	})
}

func (s *service) Reset(ctx context.Context, name string, value int64, segment string) error {
	err := s.withLock(ctx, name, func() error {
		return s.retryCAS(ctx, name, func(c *Consecutive) error {
			c.setCurrentValueFor(segment, value)
			c.History = append(c.History, types.HistoryEntry{
				Date: now(), Action: types.HistoryReset, Value: value, Segment: segment,
			})
			return nil
		})
	})
	if err != nil {
		return err
	}
	metrics.ConsecutiveResetsTotal.WithLabelValues(name).Inc()
	logger.Consecutive.Warnw("counter reset", "counter", name, "value", value, "segment", segment)
	return nil
}

func (s *service) Metrics(ctx context.Context, name string, window time.Duration) (Metrics, error) {
	c, err := s.store.Load(ctx, name, 0, 1)
	if err != nil {
		return Metrics{}, errors.Wrap(err, "consecutive: load failed")
	}
	cutoff := now().Add(-window)
	m := Metrics{PerSegmentCounts: map[string]int64{}}
	for _, h := range c.History {
		if h.Date.Before(cutoff) {
			continue
		}
		switch h.Action {
		case types.HistoryIncremented:
			m.Increments++
		case types.HistoryReset:
			m.Resets++
		}
	}
	for _, r := range c.Reservations {
		switch r.Status {
		case types.ReservationReserved:
			if r.ExpiresAt.Before(now()) {
				m.ExpiredReservations++
			} else {
				m.ActiveReservations++
			}
		case types.ReservationCommitted:
			m.CommittedReservations++
		}
		for _, v := range r.Values {
			if m.MinValue == 0 || v.Numeric < m.MinValue {
				m.MinValue = v.Numeric
			}
			if v.Numeric > m.MaxValue {
				m.MaxValue = v.Numeric
			}
		}
		if len(r.Segment) > 0 {
			m.PerSegmentCounts[r.Segment] += int64(len(r.Values))
		}
	}
	return m, nil
}

// SweepExpired flips expired reserved entries to cancelled across every
// counter this Service instance has allocated/reserved against (spec.md
// §4.4 expired-reservation sweeper). Driven periodically by Sweeper.
func (s *service) SweepExpired(ctx context.Context) (int, error) {
	s.knownMu.Lock()
	names := make([]string, 0, len(s.known))
	for n := range s.known {
		names = append(names, n)
	}
	s.knownMu.Unlock()

	var total int
	for _, name := range names {
		swept, err := s.sweepOne(ctx, name)
		if err != nil {
			return total, err
		}
		total += swept
	}
	return total, nil
}

// sweepOne flips name's expired reserved entries to cancelled.
func (s *service) sweepOne(ctx context.Context, name string) (int, error) {
	var swept int
	err := s.withLock(ctx, name, func() error {
		return s.retryCAS(ctx, name, func(c *Consecutive) error {
			swept = 0
			for i := range c.Reservations {
				r := &c.Reservations[i]
				if r.Status == types.ReservationReserved && r.ExpiresAt.Before(now()) {
					r.Status = types.ReservationCancelled
					swept++
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		metrics.ConsecutiveSweptTotal.WithLabelValues(name).Add(float64(swept))
		logger.Consecutive.Infow("swept expired reservations", "counter", name, "count", swept)
	}
	return swept, nil
}

// retryCAS loads the counter, applies mutate, and attempts the swap,
// retrying on a lost race up to maxCASRetries times.
func (s *service) retryCAS(ctx context.Context, name string, mutate func(*Consecutive) error) error {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		c, err := s.store.Load(ctx, name, 0, 1)
		if err != nil {
			return errors.Wrap(err, "consecutive: load failed")
		}
		expect := c.CurrentValue
		if err := mutate(c); err != nil {
			return err
		}
		ok, err := s.store.CompareAndSwap(ctx, c, expect)
		if err != nil {
			return errors.Wrap(err, "consecutive: compare-and-swap failed")
		}
		if ok {
			return nil
		}
	}
	return errors.Newf("consecutive: exhausted %d compare-and-swap retries for counter %q", maxCASRetries, name)
}

func (c *Consecutive) findReservation(id string) *Reservation {
	for i := range c.Reservations {
		if c.Reservations[i].ReservationID == id {
			return &c.Reservations[i]
		}
	}
	return nil
}

func (c *Consecutive) currentValueFor(segment string) int64 {
	if len(segment) == 0 || !c.Segments.Enabled {
		return c.CurrentValue
	}
	if c.Segments.Values == nil {
		return 0
	}
	return c.Segments.Values[segment]
}

func (c *Consecutive) setCurrentValueFor(segment string, value int64) {
	if len(segment) == 0 || !c.Segments.Enabled {
		c.CurrentValue = value
		return
	}
	if c.Segments.Values == nil {
		c.Segments.Values = map[string]int64{}
	}
	c.Segments.Values[segment] = value
}

// now is a seam so tests can be deterministic without mocking time.Now
// globally; production code always calls the real clock.
var now = time.Now
