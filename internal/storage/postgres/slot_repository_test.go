package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/franciscolir/pre-reserva/internal/domain"
	"github.com/franciscolir/pre-reserva/internal/testutil"
)

func TestSlotRepository_InitializeIsIdempotent(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewSlotRepository(pool)
	ids := []string{"10:00", "10:30", "11:00"}

	if err := repo.Initialize(ctx, ids); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Reserve one slot, then simulate a restart.
	applied, err := repo.TransitionIfState(ctx, "10:30", domain.SlotStateSoftLocked, domain.MutationReserve("Alice"))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if applied {
		t.Fatalf("expected rejection: slot is free, not soft-locked")
	}

	expiresAt := time.Now().UTC().Add(30 * time.Second)
	if applied, err = repo.TransitionIfState(ctx, "10:30", domain.SlotStateFree, domain.MutationSoftLock(expiresAt)); err != nil || !applied {
		t.Fatalf("soft-lock: applied=%v err=%v", applied, err)
	}
	if applied, err = repo.TransitionIfState(ctx, "10:30", domain.SlotStateSoftLocked, domain.MutationReserve("Alice")); err != nil || !applied {
		t.Fatalf("reserve: applied=%v err=%v", applied, err)
	}

	if err := repo.Initialize(ctx, ids); err != nil {
		t.Fatalf("re-initialize: %v", err)
	}

	slot, err := repo.Get(ctx, "10:30")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if slot.State != domain.SlotStateReserved || slot.HolderName != "Alice" {
		t.Fatalf("expected reservation to survive re-seed, got %+v", slot)
	}
}

func TestSlotRepository_GetAndList(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	expiresAt := time.Now().UTC().Add(time.Minute).Truncate(time.Microsecond)
	testutil.InsertSlot(t, ctx, pool, domain.NewFreeSlot("11:00"))
	testutil.InsertSlot(t, ctx, pool, domain.MutationSoftLock(expiresAt).Apply(domain.NewFreeSlot("10:30")))
	testutil.InsertSlot(t, ctx, pool, domain.MutationReserve("Bob").Apply(domain.NewFreeSlot("10:00")))

	repo := NewSlotRepository(pool)

	slot, err := repo.Get(ctx, "10:30")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if slot.State != domain.SlotStateSoftLocked || slot.ExpiresAt == nil || !slot.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected slot: %+v", slot)
	}

	if _, err := repo.Get(ctx, "23:00"); !errors.Is(err, domain.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}

	slots, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(slots) != 3 || slots[0].ID != "10:00" || slots[2].ID != "11:00" {
		t.Fatalf("expected 3 slots ordered by id, got %+v", slots)
	}

	reserved, err := repo.ListReserved(ctx)
	if err != nil {
		t.Fatalf("list reserved: %v", err)
	}
	if len(reserved) != 1 || reserved[0].SlotID != "10:00" || reserved[0].HolderName != "Bob" {
		t.Fatalf("unexpected reserved listing: %+v", reserved)
	}
}

func TestSlotRepository_TransitionIfState(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewSlotRepository(pool)
	if err := repo.Initialize(ctx, []string{"10:00"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	expiresAt := time.Now().UTC().Add(30 * time.Second)

	applied, err := repo.TransitionIfState(ctx, "10:00", domain.SlotStateFree, domain.MutationSoftLock(expiresAt))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !applied {
		t.Fatalf("expected transition to apply")
	}

	// Same expectation again: the state moved, so the condition fails.
	applied, err = repo.TransitionIfState(ctx, "10:00", domain.SlotStateFree, domain.MutationSoftLock(expiresAt))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if applied {
		t.Fatalf("expected transition to reject on stale expected state")
	}

	applied, err = repo.TransitionIfState(ctx, "23:00", domain.SlotStateFree, domain.MutationSoftLock(expiresAt))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if applied {
		t.Fatalf("expected transition to reject for missing slot")
	}
}

func TestSlotRepository_ConcurrentSoftLockSingleWinner(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewSlotRepository(pool)
	if err := repo.Initialize(ctx, []string{"10:00"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	expiresAt := time.Now().UTC().Add(30 * time.Second)

	const racers = 4
	var wg sync.WaitGroup
	results := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := repo.TransitionIfState(ctx, "10:00", domain.SlotStateFree, domain.MutationSoftLock(expiresAt))
			if err != nil {
				t.Errorf("transition: %v", err)
				return
			}
			results <- applied
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for applied := range results {
		if applied {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
}

func TestSlotRepository_FreeExpired(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	now := time.Now().UTC()
	testutil.InsertSlot(t, ctx, pool, domain.MutationSoftLock(now.Add(-time.Second)).Apply(domain.NewFreeSlot("10:00")))
	testutil.InsertSlot(t, ctx, pool, domain.MutationSoftLock(now.Add(time.Minute)).Apply(domain.NewFreeSlot("10:30")))
	testutil.InsertSlot(t, ctx, pool, domain.MutationReserve("Alice").Apply(domain.NewFreeSlot("11:00")))

	repo := NewSlotRepository(pool)

	ids, err := repo.FreeExpired(ctx, now)
	if err != nil {
		t.Fatalf("free expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != "10:00" {
		t.Fatalf("expected [10:00], got %v", ids)
	}

	// A second pass finds nothing: the first update already moved the row.
	ids, err = repo.FreeExpired(ctx, now)
	if err != nil {
		t.Fatalf("free expired: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids on second pass, got %v", ids)
	}

	freed, err := repo.Get(ctx, "10:00")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if freed.State != domain.SlotStateFree || freed.ExpiresAt != nil || freed.HolderName != "" {
		t.Fatalf("expected clean free slot, got %+v", freed)
	}
	if reserved, _ := repo.Get(ctx, "11:00"); reserved.HolderName != "Alice" {
		t.Fatalf("expected reservation untouched, got %+v", reserved)
	}
}
