package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gymkey/gymkey/internal/model"
	"github.com/gymkey/gymkey/internal/repository"
	"github.com/gymkey/gymkey/internal/testutil"
)

func TestCreateAndGetCheckin(t *testing.T) {
	store := New()
	ctx := context.Background()

	checkin := testutil.NewTestCheckin(t, "user-1")
	if err := store.CreateCheckin(ctx, checkin); err != nil {
		t.Fatalf("CreateCheckin: %v", err)
	}

	if err := store.CreateCheckin(ctx, checkin); !errors.Is(err, repository.ErrCheckinExists) {
		t.Errorf("expected ErrCheckinExists on duplicate id, got %v", err)
	}

	got, err := store.GetCheckinByID(ctx, checkin.ID)
	if err != nil {
		t.Fatalf("GetCheckinByID: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status = %s", got.Status)
	}

	if _, err := store.GetCheckinByID(ctx, "missing"); !errors.Is(err, repository.ErrCheckinNotFound) {
		t.Errorf("expected ErrCheckinNotFound, got %v", err)
	}
}

func TestGetCheckinForUser_Scoping(t *testing.T) {
	store := New()
	ctx := context.Background()

	checkin := testutil.NewTestCheckin(t, "user-1")
	if err := store.CreateCheckin(ctx, checkin); err != nil {
		t.Fatalf("CreateCheckin: %v", err)
	}

	if _, err := store.GetCheckinForUser(ctx, checkin.ID, "user-1"); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := store.GetCheckinForUser(ctx, checkin.ID, "user-2"); !errors.Is(err, repository.ErrCheckinNotFound) {
		t.Errorf("expected ErrCheckinNotFound for foreign user, got %v", err)
	}
}

func TestListCheckinsForUser_Ordering(t *testing.T) {
	store := New()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		c := testutil.NewTestCheckin(t, "user-1")
		c.ID = fmt.Sprintf("chk-%d", i)
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.CreateCheckin(ctx, c); err != nil {
			t.Fatalf("CreateCheckin: %v", err)
		}
	}

	out, err := store.ListCheckinsForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListCheckinsForUser: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 checkins, got %d", len(out))
	}
	// Most recent first.
	for i, want := range []string{"chk-2", "chk-1", "chk-0"} {
		if out[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, out[i].ID, want)
		}
	}
}

func TestUpdateCheckinStatus_Conditional(t *testing.T) {
	store := New()
	ctx := context.Background()

	checkin := testutil.NewTestCheckin(t, "user-1")
	if err := store.CreateCheckin(ctx, checkin); err != nil {
		t.Fatalf("CreateCheckin: %v", err)
	}

	pin := "4321"
	ref := "tx-1"
	updated, err := store.UpdateCheckinStatus(ctx, checkin.ID, model.StatusPending, model.StatusPaid, model.StatusUpdate{
		PinCode:          &pin,
		PaymentReference: &ref,
	})
	if err != nil {
		t.Fatalf("UpdateCheckinStatus: %v", err)
	}
	if updated.Status != model.StatusPaid || *updated.PinCode != "4321" || *updated.PaymentReference != "tx-1" {
		t.Errorf("unexpected row after update: %+v", updated)
	}

	// Expected status no longer holds.
	if _, err := store.UpdateCheckinStatus(ctx, checkin.ID, model.StatusPending, model.StatusCancelled, model.StatusUpdate{}); !errors.Is(err, repository.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}

	if _, err := store.UpdateCheckinStatus(ctx, "missing", model.StatusPending, model.StatusPaid, model.StatusUpdate{}); !errors.Is(err, repository.ErrCheckinNotFound) {
		t.Errorf("expected ErrCheckinNotFound, got %v", err)
	}
}

func TestUpdateCheckinStatus_ConcurrentSingleWinner(t *testing.T) {
	store := New()
	ctx := context.Background()

	checkin := testutil.NewTestCheckin(t, "user-1")
	if err := store.CreateCheckin(ctx, checkin); err != nil {
		t.Fatalf("CreateCheckin: %v", err)
	}

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan string, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pin := fmt.Sprintf("%04d", 1000+i)
			_, err := store.UpdateCheckinStatus(ctx, checkin.ID, model.StatusPending, model.StatusPaid, model.StatusUpdate{PinCode: &pin})
			if err == nil {
				wins <- pin
			} else if !errors.Is(err, repository.ErrStatusConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for pin := range wins {
		winners = append(winners, pin)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly 1 winning transition, got %d", len(winners))
	}

	got, err := store.GetCheckinByID(ctx, checkin.ID)
	if err != nil {
		t.Fatalf("GetCheckinByID: %v", err)
	}
	if *got.PinCode != winners[0] {
		t.Errorf("stored pin %s does not match winner %s", *got.PinCode, winners[0])
	}
}

func TestSetPaymentReference(t *testing.T) {
	store := New()
	ctx := context.Background()

	checkin := testutil.NewTestCheckin(t, "user-1")
	if err := store.CreateCheckin(ctx, checkin); err != nil {
		t.Fatalf("CreateCheckin: %v", err)
	}

	if err := store.SetPaymentReference(ctx, checkin.ID, "tx-9"); err != nil {
		t.Fatalf("SetPaymentReference: %v", err)
	}

	got, err := store.GetCheckinByID(ctx, checkin.ID)
	if err != nil {
		t.Fatalf("GetCheckinByID: %v", err)
	}
	if got.PaymentReference == nil || *got.PaymentReference != "tx-9" {
		t.Errorf("reference = %v", got.PaymentReference)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status must be untouched, got %s", got.Status)
	}

	if err := store.SetPaymentReference(ctx, "missing", "tx"); !errors.Is(err, repository.ErrCheckinNotFound) {
		t.Errorf("expected ErrCheckinNotFound, got %v", err)
	}
}

func TestGetOrCreateUser(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.GetOrCreateUser(ctx, testutil.NewTestUser(t, "U_ext_1"))
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}

	// Same external identity resolves to the same row with a refreshed
	// profile, regardless of the candidate id.
	candidate := testutil.NewTestUser(t, "U_ext_1")
	candidate.DisplayName = "Renamed"
	second, err := store.GetOrCreateUser(ctx, candidate)
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected stable user id %s, got %s", first.ID, second.ID)
	}
	if second.DisplayName != "Renamed" {
		t.Errorf("profile not refreshed: %s", second.DisplayName)
	}

	other, err := store.GetOrCreateUser(ctx, testutil.NewTestUser(t, "U_ext_2"))
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if other.ID == first.ID {
		t.Error("distinct external identities must map to distinct users")
	}
}

func TestClonesAreIsolated(t *testing.T) {
	store := New()
	ctx := context.Background()

	checkin := testutil.NewTestCheckin(t, "user-1")
	if err := store.CreateCheckin(ctx, checkin); err != nil {
		t.Fatalf("CreateCheckin: %v", err)
	}

	got, err := store.GetCheckinByID(ctx, checkin.ID)
	if err != nil {
		t.Fatalf("GetCheckinByID: %v", err)
	}
	got.Status = model.StatusCancelled

	again, err := store.GetCheckinByID(ctx, checkin.ID)
	if err != nil {
		t.Fatalf("GetCheckinByID: %v", err)
	}
	if again.Status != model.StatusPending {
		t.Error("mutating a returned row must not affect the store")
	}
}
