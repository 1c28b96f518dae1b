// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

// Package state owns all mutable per-customer and per-campaign aggregates.
// Callers never touch the underlying maps; every access goes through the
// Store API so the backing storage can change without touching the decision
// engine.
//
// All mutating operations are idempotent with respect to a caller-supplied
// event identifier: replaying an already-applied identifier leaves state
// unchanged. The applied-identifier ledger is part of the snapshot, so the
// contract survives crash recovery.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/airlytix/promopilot/internal/metrics"
)

// ErrCorruptSnapshot indicates a snapshot that cannot be deserialized.
// Startup must treat this as fatal.
var ErrCorruptSnapshot = errors.New("state snapshot is corrupt")

// CustomerState holds per-customer aggregates. Exposures are pruned to the
// fatigue window before being counted.
type CustomerState struct {
	CustomerID    string      `json:"customer_id"`
	LastPromoAt   *time.Time  `json:"last_promo_at,omitempty"`
	LastBookingAt *time.Time  `json:"last_booking_at,omitempty"`
	Exposures     []time.Time `json:"exposures,omitempty"`
}

// CampaignState holds per-campaign counters. Both counters are monotonic.
type CampaignState struct {
	PromoID       string `json:"promo_id"`
	ExposureCount int64  `json:"exposure_count"`
	BookingCount  int64  `json:"booking_count"`
}

// Snapshot is a consistent point-in-time copy of the full store, including
// the applied-identifier ledger and the last committed stream sequence.
type Snapshot struct {
	TakenAt      time.Time                 `json:"taken_at"`
	LastSequence uint64                    `json:"last_sequence"`
	Customers    map[string]*CustomerState `json:"customers"`
	Campaigns    map[string]*CampaignState `json:"campaigns"`
	Applied      map[string]time.Time      `json:"applied"`
}

// Store is the in-memory state store. All methods are safe for concurrent
// use, though the decision engine processes events sequentially; the lock
// exists so snapshotting can run concurrently with processing.
type Store struct {
	mu        sync.RWMutex
	customers map[string]*CustomerState
	campaigns map[string]*CampaignState
	applied   map[string]time.Time
	lastSeq   uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		customers: make(map[string]*CustomerState),
		campaigns: make(map[string]*CampaignState),
		applied:   make(map[string]time.Time),
	}
}

// Applied reports whether eventID has already been applied.
func (s *Store) Applied(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.applied[eventID]
	return ok
}

// RecordPromo appends ts to the customer's exposure window, sets
// last_promo_at, and increments the campaign's exposure counter. The
// customer and campaign records are created on first reference.
//
// The mutation is keyed by eventID: re-applying an already-applied id is a
// no-op.
func (s *Store) RecordPromo(eventID, customerID, promoID string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.applied[eventID]; ok {
		return
	}
	s.applied[eventID] = ts

	c := s.customerLocked(customerID)
	c.Exposures = append(c.Exposures, ts)
	promoAt := ts
	c.LastPromoAt = &promoAt

	camp := s.campaignLocked(promoID)
	camp.ExposureCount++
}

// RecordBooking sets last_booking_at and, when promoID is non-empty,
// increments that campaign's booking counter. Idempotent per eventID.
func (s *Store) RecordBooking(eventID, customerID, promoID string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.applied[eventID]; ok {
		return
	}
	s.applied[eventID] = ts

	c := s.customerLocked(customerID)
	bookedAt := ts
	c.LastBookingAt = &bookedAt

	if promoID != "" {
		s.campaignLocked(promoID).BookingCount++
	}
}

// ExposureCount prunes exposures older than now−window and returns the
// remaining count. Pruning is a deliberate side effect bounding per-customer
// memory growth.
func (s *Store) ExposureCount(customerID string, window time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return 0
	}

	cutoff := now.Add(-window)
	kept := c.Exposures[:0]
	for _, ts := range c.Exposures {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.Exposures = kept
	return len(kept)
}

// LastPromoAt returns the customer's last promotion timestamp, or nil when
// the customer is unknown or has never been exposed.
func (s *Store) LastPromoAt(customerID string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok || c.LastPromoAt == nil {
		return nil
	}
	at := *c.LastPromoAt
	return &at
}

// Customer returns a copy of the customer's state.
func (s *Store) Customer(customerID string) (CustomerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok {
		return CustomerState{}, false
	}
	return copyCustomer(c), true
}

// Campaign returns a copy of the campaign's state.
func (s *Store) Campaign(promoID string) (CampaignState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	camp, ok := s.campaigns[promoID]
	if !ok {
		return CampaignState{}, false
	}
	return *camp, true
}

// SetLastSequence records the stream sequence of the most recently committed
// event, persisted with the next snapshot.
func (s *Store) SetLastSequence(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
}

// IncrementSequence advances the committed sequence by one under a single
// lock acquisition and returns the new value.
func (s *Store) IncrementSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeq++
	return s.lastSeq
}

// LastSequence returns the last committed stream sequence.
func (s *Store) LastSequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// Counts returns the number of tracked customers and campaigns.
func (s *Store) Counts() (customers, campaigns int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers), len(s.campaigns)
}

// EvictInactive removes customers whose last activity (promotion or booking)
// is older than now−retention, and expires ledger entries older than
// now−ledgerTTL. Campaign counters are never evicted. Returns the number of
// customers removed.
func (s *Store) EvictInactive(now time.Time, retention, ledgerTTL time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-retention)
	evicted := 0
	for id, c := range s.customers {
		last := lastActivity(c)
		if last != nil && last.Before(cutoff) {
			delete(s.customers, id)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.CustomersEvicted.Add(float64(evicted))
		s.updateGaugesLocked()
	}

	ledgerCutoff := now.Add(-ledgerTTL)
	for id, ts := range s.applied {
		if ts.Before(ledgerCutoff) {
			delete(s.applied, id)
		}
	}

	return evicted
}

// TakeSnapshot returns a consistent deep copy of the store. The copy is made
// under the lock; event processing pauses only for the duration of the copy,
// not for the durable write.
func (s *Store) TakeSnapshot(now time.Time) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		TakenAt:      now,
		LastSequence: s.lastSeq,
		Customers:    make(map[string]*CustomerState, len(s.customers)),
		Campaigns:    make(map[string]*CampaignState, len(s.campaigns)),
		Applied:      make(map[string]time.Time, len(s.applied)),
	}
	for id, c := range s.customers {
		cc := copyCustomer(c)
		snap.Customers[id] = &cc
	}
	for id, camp := range s.campaigns {
		cp := *camp
		snap.Campaigns[id] = &cp
	}
	for id, ts := range s.applied {
		snap.Applied[id] = ts
	}
	return snap
}

// Restore replaces the store's contents with the snapshot. Called once at
// startup before event processing begins.
func (s *Store) Restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers = make(map[string]*CustomerState, len(snap.Customers))
	for id, c := range snap.Customers {
		cc := copyCustomer(c)
		s.customers[id] = &cc
	}
	s.campaigns = make(map[string]*CampaignState, len(snap.Campaigns))
	for id, camp := range snap.Campaigns {
		cp := *camp
		s.campaigns[id] = &cp
	}
	s.applied = make(map[string]time.Time, len(snap.Applied))
	for id, ts := range snap.Applied {
		s.applied[id] = ts
	}
	s.lastSeq = snap.LastSequence
	s.updateGaugesLocked()
}

func (s *Store) customerLocked(customerID string) *CustomerState {
	c, ok := s.customers[customerID]
	if !ok {
		c = &CustomerState{CustomerID: customerID}
		s.customers[customerID] = c
		metrics.CustomersTracked.Set(float64(len(s.customers)))
	}
	return c
}

func (s *Store) campaignLocked(promoID string) *CampaignState {
	camp, ok := s.campaigns[promoID]
	if !ok {
		camp = &CampaignState{PromoID: promoID}
		s.campaigns[promoID] = camp
		metrics.CampaignsTracked.Set(float64(len(s.campaigns)))
	}
	return camp
}

func (s *Store) updateGaugesLocked() {
	metrics.CustomersTracked.Set(float64(len(s.customers)))
	metrics.CampaignsTracked.Set(float64(len(s.campaigns)))
}

func copyCustomer(c *CustomerState) CustomerState {
	cc := CustomerState{CustomerID: c.CustomerID}
	if c.LastPromoAt != nil {
		at := *c.LastPromoAt
		cc.LastPromoAt = &at
	}
	if c.LastBookingAt != nil {
		at := *c.LastBookingAt
		cc.LastBookingAt = &at
	}
	if len(c.Exposures) > 0 {
		cc.Exposures = append([]time.Time(nil), c.Exposures...)
	}
	return cc
}

func lastActivity(c *CustomerState) *time.Time {
	last := c.LastPromoAt
	if c.LastBookingAt != nil && (last == nil || c.LastBookingAt.After(*last)) {
		last = c.LastBookingAt
	}
	return last
}
