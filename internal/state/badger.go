// PromoPilot - Airline Promotion Decision Simulation
// Copyright 2026 Airlytix
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/airlytix/promopilot

package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Snapshots alternate between two on-disk generations. Records live under
// snapshot:<gen>:<kind>:<id>; the meta key names the live generation and is
// only flipped after the new generation's records have been fully flushed,
// so Load never observes a half-written snapshot and an interrupted Persist
// leaves the previous snapshot intact.
const (
	metaKey = "snapshot:meta"

	kindCustomer = "customer"
	kindCampaign = "campaign"
	kindApplied  = "applied"
)

func recordPrefix(gen int, kind string) []byte {
	return []byte(fmt.Sprintf("snapshot:%d:%s:", gen, kind))
}

// snapshotMeta is the snapshot header naming the live generation.
type snapshotMeta struct {
	Generation   int       `json:"generation"`
	TakenAt      time.Time `json:"taken_at"`
	LastSequence uint64    `json:"last_sequence"`
}

// BadgerSnapshotStore persists store snapshots to BadgerDB for crash
// recovery. Each Persist fully replaces the previous snapshot.
type BadgerSnapshotStore struct {
	db *badger.DB
}

// NewBadgerSnapshotStore creates a snapshot store over an open BadgerDB.
func NewBadgerSnapshotStore(db *badger.DB) *BadgerSnapshotStore {
	return &BadgerSnapshotStore{db: db}
}

// OpenBadger opens (or creates) the BadgerDB directory used for snapshots.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return db, nil
}

// Persist writes the snapshot into the inactive generation and flips the
// meta pointer to it only after the write batch has flushed. A crash or
// write failure anywhere before the flip leaves the previous snapshot the
// live one; leftovers from such an attempt are cleared on the next Persist.
func (s *BadgerSnapshotStore) Persist(snap *Snapshot) error {
	cur, found, err := s.readMeta()
	if err != nil {
		return err
	}
	next := 0
	if found {
		next = 1 - cur.Generation
	}

	// Clear any partial write a crashed earlier attempt left in the target
	// generation. The live generation is untouched.
	if err := s.dropGeneration(next); err != nil {
		return err
	}

	// Customer and campaign records go through a WriteBatch to stay under
	// the transaction size limit for large state maps.
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for id, c := range snap.Customers {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal customer %s: %w", id, err)
		}
		if err := wb.Set(append(recordPrefix(next, kindCustomer), id...), data); err != nil {
			return fmt.Errorf("set customer %s: %w", id, err)
		}
	}
	for id, camp := range snap.Campaigns {
		data, err := json.Marshal(camp)
		if err != nil {
			return fmt.Errorf("marshal campaign %s: %w", id, err)
		}
		if err := wb.Set(append(recordPrefix(next, kindCampaign), id...), data); err != nil {
			return fmt.Errorf("set campaign %s: %w", id, err)
		}
	}
	for id, ts := range snap.Applied {
		data, err := json.Marshal(ts)
		if err != nil {
			return fmt.Errorf("marshal applied ts %s: %w", id, err)
		}
		if err := wb.Set(append(recordPrefix(next, kindApplied), id...), data); err != nil {
			return fmt.Errorf("set applied %s: %w", id, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush snapshot batch: %w", err)
	}

	// The flip is the commit point.
	meta, err := json.Marshal(snapshotMeta{
		Generation:   next,
		TakenAt:      snap.TakenAt,
		LastSequence: snap.LastSequence,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot meta: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaKey), meta)
	}); err != nil {
		return fmt.Errorf("flip snapshot meta: %w", err)
	}

	// Best effort: a failure here leaves stale records that the persist
	// after next clears before reuse.
	if found {
		if err := s.dropGeneration(cur.Generation); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the live snapshot generation. Returns (nil, nil) when no
// snapshot has ever been written. Any deserialization failure wraps
// ErrCorruptSnapshot; callers must treat it as fatal at startup.
func (s *BadgerSnapshotStore) Load() (*Snapshot, error) {
	meta, found, err := s.readMeta()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	snap := &Snapshot{
		TakenAt:      meta.TakenAt,
		LastSequence: meta.LastSequence,
		Customers:    make(map[string]*CustomerState),
		Campaigns:    make(map[string]*CampaignState),
		Applied:      make(map[string]time.Time),
	}

	err = s.db.View(func(txn *badger.Txn) error {
		if err := loadPrefix(txn, recordPrefix(meta.Generation, kindCustomer), func(id string, val []byte) error {
			var c CustomerState
			if err := json.Unmarshal(val, &c); err != nil {
				return fmt.Errorf("%w: customer %s: %v", ErrCorruptSnapshot, id, err)
			}
			snap.Customers[id] = &c
			return nil
		}); err != nil {
			return err
		}

		if err := loadPrefix(txn, recordPrefix(meta.Generation, kindCampaign), func(id string, val []byte) error {
			var camp CampaignState
			if err := json.Unmarshal(val, &camp); err != nil {
				return fmt.Errorf("%w: campaign %s: %v", ErrCorruptSnapshot, id, err)
			}
			snap.Campaigns[id] = &camp
			return nil
		}); err != nil {
			return err
		}

		return loadPrefix(txn, recordPrefix(meta.Generation, kindApplied), func(id string, val []byte) error {
			var ts time.Time
			if err := json.Unmarshal(val, &ts); err != nil {
				return fmt.Errorf("%w: applied %s: %v", ErrCorruptSnapshot, id, err)
			}
			snap.Applied[id] = ts
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *BadgerSnapshotStore) readMeta() (snapshotMeta, bool, error) {
	var meta snapshotMeta
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get snapshot meta: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &meta); err != nil {
				return fmt.Errorf("%w: meta: %v", ErrCorruptSnapshot, err)
			}
			return nil
		})
	})
	return meta, found, err
}

func (s *BadgerSnapshotStore) dropGeneration(gen int) error {
	for _, kind := range []string{kindCustomer, kindCampaign, kindApplied} {
		if err := s.db.DropPrefix(recordPrefix(gen, kind)); err != nil {
			return fmt.Errorf("drop generation %d %s records: %w", gen, kind, err)
		}
	}
	return nil
}

func loadPrefix(txn *badger.Txn, prefix []byte, fn func(id string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		id := string(item.Key()[len(prefix):])
		if err := item.Value(func(val []byte) error {
			return fn(id, val)
		}); err != nil {
			return err
		}
	}
	return nil
}
