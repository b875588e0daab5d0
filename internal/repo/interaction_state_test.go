package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/telegive/bot-service/internal/domain"
)

func liveState(senderID int64, ttl time.Duration) *domain.InteractionState {
	return &domain.InteractionState{
		SenderID:      senderID,
		State:         domain.StateAwaitingCaptcha,
		CampaignID:    9,
		PendingAnswer: 7,
		MaxAttempts:   3,
		QuestionText:  "3 + 4 = ?",
		ExpiresAt:     time.Now().UTC().Add(ttl),
	}
}

func TestPutInteractionState_UpsertsSingleRow(t *testing.T) {
	db := newRepoDB(t, &domain.InteractionState{})
	ctx := context.Background()
	now := time.Now().UTC()

	if err := PutInteractionState(ctx, db, liveState(1, time.Hour)); err != nil {
		t.Fatalf("first put: %v", err)
	}

	// Second write for the same sender replaces the row.
	st := liveState(1, time.Hour)
	st.State = domain.StateAwaitingSubscription
	st.CampaignID = 10
	if err := PutInteractionState(ctx, db, st); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := GetInteractionState(ctx, db, 1, now)
	if err != nil {
		t.Fatalf("GetInteractionState: %v", err)
	}
	if got.State != domain.StateAwaitingSubscription || got.CampaignID != 10 {
		t.Fatalf("row not replaced: %+v", got)
	}

	var count int64
	if err := db.Model(&domain.InteractionState{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d; want 1", count)
	}
}

func TestGetInteractionState_ExpiredRowIsAbsent(t *testing.T) {
	db := newRepoDB(t, &domain.InteractionState{})
	ctx := context.Background()

	if err := PutInteractionState(ctx, db, liveState(2, -time.Minute)); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, err := GetInteractionState(ctx, db, 2, time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}

func TestIncrementCaptchaAttempts_CountsAndGuards(t *testing.T) {
	db := newRepoDB(t, &domain.InteractionState{})
	ctx := context.Background()
	now := time.Now().UTC()

	if err := PutInteractionState(ctx, db, liveState(3, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := IncrementCaptchaAttempts(ctx, db, 3, now)
		if err != nil {
			t.Fatalf("increment %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("attempts = %d; want %d", got, want)
		}
	}

	// No live captcha session -> ErrNotFound.
	if _, err := IncrementCaptchaAttempts(ctx, db, 404, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing sender err = %v; want ErrNotFound", err)
	}

	// A session in another state is untouchable.
	st := liveState(4, time.Hour)
	st.State = domain.StateAwaitingSubscription
	if err := PutInteractionState(ctx, db, st); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := IncrementCaptchaAttempts(ctx, db, 4, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wrong-state err = %v; want ErrNotFound", err)
	}
}

func TestClearInteractionState_AbsentRowIsNoError(t *testing.T) {
	db := newRepoDB(t, &domain.InteractionState{})
	ctx := context.Background()

	if err := ClearInteractionState(ctx, db, 5); err != nil {
		t.Fatalf("clear absent: %v", err)
	}

	if err := PutInteractionState(ctx, db, liveState(5, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ClearInteractionState(ctx, db, 5); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := GetInteractionState(ctx, db, 5, time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("row survived clear: %v", err)
	}
}

func TestDeleteExpiredInteractionStates(t *testing.T) {
	db := newRepoDB(t, &domain.InteractionState{})
	ctx := context.Background()

	if err := PutInteractionState(ctx, db, liveState(6, -time.Minute)); err != nil {
		t.Fatalf("put expired: %v", err)
	}
	if err := PutInteractionState(ctx, db, liveState(7, time.Hour)); err != nil {
		t.Fatalf("put live: %v", err)
	}

	n, err := DeleteExpiredInteractionStates(ctx, db, time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpiredInteractionStates: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d; want 1", n)
	}
	if _, err := GetInteractionState(ctx, db, 7, time.Now().UTC()); err != nil {
		t.Fatalf("live row lost: %v", err)
	}
}
