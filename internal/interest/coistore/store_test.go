package coistore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

func setupStore(t *testing.T) (*Store, func()) {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	return New(db), func() { db.Close() }
}

func TestUpsertAndReadPositive(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	coi := interest.PositiveCoi{
		ID:    interest.NewCoiID(),
		Point: embedding.MustNew([]float32{1, 0, 0}),
		Stats: interest.Stats{ViewCount: 3, ViewTime: 5 * time.Minute, LastView: time.Now().UTC()},
	}
	if err := s.UpsertPositive("alice", coi); err != nil {
		t.Fatalf("UpsertPositive: %v", err)
	}

	got, err := s.Positive("alice")
	if err != nil {
		t.Fatalf("Positive: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 coi, got %d", len(got))
	}
	if got[0].ID != coi.ID {
		t.Fatalf("expected id %v, got %v", coi.ID, got[0].ID)
	}
	if got[0].Stats.ViewCount != 3 {
		t.Fatalf("expected view count 3, got %d", got[0].Stats.ViewCount)
	}
}

func TestPositiveIsolatedPerUser(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	coiA := interest.PositiveCoi{ID: interest.NewCoiID(), Point: embedding.MustNew([]float32{1, 0, 0})}
	coiB := interest.PositiveCoi{ID: interest.NewCoiID(), Point: embedding.MustNew([]float32{0, 1, 0})}

	if err := s.UpsertPositive("alice", coiA); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPositive("bob", coiB); err != nil {
		t.Fatal(err)
	}

	aliceCois, err := s.Positive("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(aliceCois) != 1 || aliceCois[0].ID != coiA.ID {
		t.Fatalf("alice's store leaked bob's coi: %+v", aliceCois)
	}
}

func TestUpsertOverwritesByID(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	id := interest.NewCoiID()
	first := interest.PositiveCoi{ID: id, Point: embedding.MustNew([]float32{1, 0, 0}), Stats: interest.Stats{ViewCount: 1}}
	second := interest.PositiveCoi{ID: id, Point: embedding.MustNew([]float32{0, 1, 0}), Stats: interest.Stats{ViewCount: 9}}

	if err := s.UpsertPositive("alice", first); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPositive("alice", second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Positive("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected overwrite to keep a single coi, got %d", len(got))
	}
	if got[0].Stats.ViewCount != 9 {
		t.Fatalf("expected overwritten view count 9, got %d", got[0].Stats.ViewCount)
	}
}

func TestRemoveForUserClearsBothSets(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	pos := interest.PositiveCoi{ID: interest.NewCoiID(), Point: embedding.MustNew([]float32{1, 0, 0})}
	neg := interest.NegativeCoi{ID: interest.NewCoiID(), Point: embedding.MustNew([]float32{0, 1, 0})}
	if err := s.UpsertPositive("alice", pos); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertNegative("alice", neg); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveForUser("alice"); err != nil {
		t.Fatalf("RemoveForUser: %v", err)
	}

	if p, err := s.Positive("alice"); err != nil || len(p) != 0 {
		t.Fatalf("expected no positive cois after removal, got %+v (err=%v)", p, err)
	}
	if n, err := s.Negative("alice"); err != nil || len(n) != 0 {
		t.Fatalf("expected no negative cois after removal, got %+v (err=%v)", n, err)
	}
}

// TestWriteLockSerializesPerUser exercises the concurrency contract of
// spec §4.2/§5: writers touching the same user must not interleave their
// read-decide-write cycle.
func TestWriteLockSerializesPerUser(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = s.WithUserLock(context.Background(), "alice", func(ctx context.Context) error {
				existing, err := s.Positive("alice")
				if err != nil {
					return err
				}
				return s.UpsertPositive("alice", interest.PositiveCoi{
					ID:    interest.NewCoiID(),
					Point: embedding.MustNew([]float32{1, float32(len(existing)), 0}),
					Stats: interest.Stats{ViewCount: 1, LastView: time.Now().UTC()},
				})
			})
		}()
	}
	wg.Wait()

	got, err := s.Positive("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != n {
		t.Fatalf("expected %d serialized writes to produce %d distinct cois, got %d", n, n, len(got))
	}
}

func TestReadLockAllowsConcurrentReaders(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	if err := s.UpsertPositive("alice", interest.PositiveCoi{ID: interest.NewCoiID(), Point: embedding.MustNew([]float32{1, 0, 0})}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithUserRLock(context.Background(), "alice", func(ctx context.Context) error {
				_, err := s.Positive("alice")
				return err
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent read failed: %v", err)
		}
	}
}
