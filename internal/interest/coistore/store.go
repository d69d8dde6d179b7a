// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package coistore implements the per-user Center of Interest store (C2).
// Positive and negative CoI sets are persisted in an embedded BadgerDB so
// they survive a process restart, and are guarded by a per-user
// readers-writer lock: concurrent readers are permitted, writers are
// serialized per user, matching spec §4.2 and §5.
package coistore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/interestengine/internal/interest"
)

const (
	positiveKeyPrefix = "coi:pos:"
	negativeKeyPrefix = "coi:neg:"
)

// record is the Badger-serializable form of a CoI; the exported domain
// types carry an embedding.Embedding, which is reconstructed through
// embedding.New on load to re-validate the unit-norm invariant.
type record struct {
	ID        interest.CoiID `json:"id"`
	Point     []float32      `json:"point"`
	ViewCount uint32         `json:"view_count,omitempty"`
	ViewTime  int64          `json:"view_time_ns,omitempty"`
	LastView  int64          `json:"last_view_unix_ns"`
}

// Store is the Badger-backed CoI store, safe for concurrent use across
// users. Per-user serialization is provided by lockFor, not by Badger
// itself (Badger transactions alone don't give the read-decide-write
// atomicity the C3 update rule needs).
type Store struct {
	db *badger.DB

	mu    sync.Mutex // guards locks map
	locks map[string]*sync.RWMutex
}

// New wraps an already-open Badger handle. The caller owns db's lifecycle.
func New(db *badger.DB) *Store {
	return &Store{db: db, locks: make(map[string]*sync.RWMutex)}
}

func (s *Store) lockFor(user string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[user]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[user] = l
	}
	return l
}

// WithUserLock runs fn while holding the exclusive per-user lock. Used by
// the CoI update rule (C3) to make a read-decide-write cycle atomic with
// respect to concurrent readers of the same user, per spec §4.3/§5.
func (s *Store) WithUserLock(ctx context.Context, user string, fn func(ctx context.Context) error) error {
	l := s.lockFor(user)
	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

// WithUserRLock runs fn while holding the shared per-user lock, for
// query-time reads (C6, C7, C8) that must observe a consistent snapshot.
func (s *Store) WithUserRLock(ctx context.Context, user string, fn func(ctx context.Context) error) error {
	l := s.lockFor(user)
	l.RLock()
	defer l.RUnlock()
	return fn(ctx)
}

func positiveKey(user string, id interest.CoiID) []byte {
	return []byte(positiveKeyPrefix + user + ":" + string(id))
}

func negativeKey(user string, id interest.CoiID) []byte {
	return []byte(negativeKeyPrefix + user + ":" + string(id))
}

// Positive returns the user's positive CoIs. Order is stable between reads
// without an intervening write, per spec §4.2, since Badger iterates keys
// lexicographically and CoI ids don't change.
func (s *Store) Positive(user string) ([]interest.PositiveCoi, error) {
	var out []interest.PositiveCoi
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(positiveKeyPrefix + user + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			var rec record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode positive coi: %w", err)
			}
			coi, err := recordToPositive(rec)
			if err != nil {
				return err
			}
			out = append(out, coi)
		}
		return nil
	})
	return out, err
}

// Negative returns the user's negative CoIs.
func (s *Store) Negative(user string) ([]interest.NegativeCoi, error) {
	var out []interest.NegativeCoi
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(negativeKeyPrefix + user + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			var rec record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode negative coi: %w", err)
			}
			out = append(out, interest.NegativeCoi{
				ID:       rec.ID,
				Point:    mustPoint(rec.Point),
				LastView: unixNanoToTime(rec.LastView),
			})
		}
		return nil
	})
	return out, err
}

// UpsertPositive writes coi, overwriting any prior value with the same ID.
func (s *Store) UpsertPositive(user string, coi interest.PositiveCoi) error {
	rec := record{
		ID:        coi.ID,
		Point:     coi.Point.Values(),
		ViewCount: coi.Stats.ViewCount,
		ViewTime:  int64(coi.Stats.ViewTime),
		LastView:  coi.Stats.LastView.UnixNano(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal positive coi: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(positiveKey(user, coi.ID), data)
	})
}

// UpsertNegative writes coi, overwriting any prior value with the same ID.
func (s *Store) UpsertNegative(user string, coi interest.NegativeCoi) error {
	rec := record{
		ID:       coi.ID,
		Point:    coi.Point.Values(),
		LastView: coi.LastView.UnixNano(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal negative coi: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(negativeKey(user, coi.ID), data)
	})
}

// RemoveForUser deletes every positive and negative CoI for user. Used on
// tenant/user deletion, the only CoI deletion path per spec §3's lifecycle.
func (s *Store) RemoveForUser(user string) error {
	prefixes := [][]byte{
		[]byte(positiveKeyPrefix + user + ":"),
		[]byte(negativeKeyPrefix + user + ":"),
	}
	for _, prefix := range prefixes {
		if err := s.deletePrefix(prefix); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) deletePrefix(prefix []byte) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func recordToPositive(rec record) (interest.PositiveCoi, error) {
	return interest.PositiveCoi{
		ID:    rec.ID,
		Point: mustPoint(rec.Point),
		Stats: interest.Stats{
			ViewCount: rec.ViewCount,
			ViewTime:  timeDuration(rec.ViewTime),
			LastView:  unixNanoToTime(rec.LastView),
		},
	}, nil
}

// SortedByLastView returns a copy of cois ordered by most-recently-viewed
// first.
func SortedByLastView(cois []interest.PositiveCoi) []interest.PositiveCoi {
	out := make([]interest.PositiveCoi, len(cois))
	copy(out, cois)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Stats.LastView.After(out[j].Stats.LastView)
	})
	return out
}
