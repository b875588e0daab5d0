package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/telegive/bot-service/internal/clients"
	"github.com/telegive/bot-service/internal/domain"
	"github.com/telegive/bot-service/internal/repo"
	"github.com/telegive/bot-service/internal/telegram"
)

// --- fakes ---------------------------------------------------------------

type sentMessage struct {
	recipientID int64
	text        string
	keyboard    *telegram.InlineKeyboard
}

// fakeSender records sends; err (or errFor hits) fail the call.
type fakeSender struct {
	sent   []sentMessage
	err    error
	errFor map[int64]error // per-recipient override
	nextID int64
}

func (f *fakeSender) Send(_ context.Context, recipientID int64, text string, kb *telegram.InlineKeyboard) (telegram.SendResult, error) {
	if f.errFor != nil {
		if err, ok := f.errFor[recipientID]; ok && err != nil {
			return telegram.SendResult{}, err
		}
	}
	if f.err != nil {
		return telegram.SendResult{}, f.err
	}
	f.sent = append(f.sent, sentMessage{recipientID: recipientID, text: text, keyboard: kb})
	f.nextID++
	return telegram.SendResult{MessageID: f.nextID}, nil
}

func (f *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeParticipants struct {
	participating bool
	regResult     clients.RegistrationResult
	winner        clients.WinnerStatus
	err           error

	registered []int64 // sender ids passed to Register
}

func (f *fakeParticipants) Register(_ context.Context, _, senderID int64, _ clients.UserInfo) (clients.RegistrationResult, error) {
	if f.err != nil {
		return clients.RegistrationResult{}, f.err
	}
	f.registered = append(f.registered, senderID)
	return f.regResult, nil
}

func (f *fakeParticipants) IsParticipating(context.Context, int64, int64) (bool, error) {
	return f.participating, f.err
}

func (f *fakeParticipants) CheckWinnerStatus(context.Context, int64, int64) (clients.WinnerStatus, error) {
	return f.winner, f.err
}

type fakeGiveaways struct {
	campaign *clients.Campaign
	err      error
}

func (f *fakeGiveaways) ResolveByToken(context.Context, string) (*clients.Campaign, error) {
	return f.campaign, f.err
}

type fakeMemberships struct {
	member  bool
	targets []clients.SubscriptionTarget
	err     error
}

func (f *fakeMemberships) VerifySubscription(context.Context, int64, clients.SubscriptionTarget) (bool, error) {
	return f.member, f.err
}

func (f *fakeMemberships) SubscriptionTargets(context.Context, int64) ([]clients.SubscriptionTarget, error) {
	return f.targets, f.err
}

// --- helpers -------------------------------------------------------------

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestWorkflow(t *testing.T, db *gorm.DB, s telegram.Sender, p ParticipantAPI, g GiveawayAPI, m MembershipAPI) *WorkflowService {
	t.Helper()
	w := NewWorkflowService(db, s, p, g, m)
	w.NewChallenge = func() Challenge { return Challenge{Question: "1 + 3 = ?", Answer: 4} }
	return w
}

func privateMsg(senderID int64, text string) telegram.InboundMessage {
	return telegram.InboundMessage{SenderID: senderID, ChatID: senderID, ChatType: "private", Text: text}
}

func participate(senderID, campaignID int64) telegram.InboundCallback {
	return telegram.InboundCallback{
		SenderID: senderID,
		ChatID:   senderID,
		Action:   telegram.ParticipateAction{CampaignID: campaignID},
	}
}

// --- commands ------------------------------------------------------------

func TestHandleMessage_StartCommand(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	w := newTestWorkflow(t, db, sender, &fakeParticipants{}, &fakeGiveaways{}, &fakeMemberships{})

	if err := w.HandleMessage(context.Background(), privateMsg(42, "/start")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(sender.last(t).text, "Welcome") {
		t.Fatalf("unexpected reply: %q", sender.last(t).text)
	}
}

func TestHandleMessage_IgnoresGroupChats(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	w := newTestWorkflow(t, db, sender, &fakeParticipants{}, &fakeGiveaways{}, &fakeMemberships{})

	msg := telegram.InboundMessage{SenderID: 42, ChatID: -100, ChatType: "group", Text: "/start"}
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("replied to group chat: %+v", sender.sent)
	}
}

func TestHandleMessage_CancelClearsSession(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	parts := &fakeParticipants{}
	w := newTestWorkflow(t, db, sender, parts, &fakeGiveaways{}, &fakeMemberships{})
	ctx := context.Background()

	// Nothing to cancel yet.
	if err := w.HandleMessage(ctx, privateMsg(42, "/cancel")); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sender.last(t).text != msgNothingToCancel {
		t.Fatalf("reply = %q", sender.last(t).text)
	}

	// Start a captcha session, then cancel it.
	if err := w.HandleCallback(ctx, participate(42, 9)); err != nil {
		t.Fatalf("participate: %v", err)
	}
	if err := w.HandleMessage(ctx, privateMsg(42, "/cancel")); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sender.last(t).text != msgCancelled {
		t.Fatalf("reply = %q", sender.last(t).text)
	}
	if _, err := repo.GetInteractionState(ctx, db, 42, time.Now().UTC()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("session survived cancel: %v", err)
	}
}

func TestHandleMessage_UnknownCommand(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	w := newTestWorkflow(t, db, sender, &fakeParticipants{}, &fakeGiveaways{}, &fakeMemberships{})

	if err := w.HandleMessage(context.Background(), privateMsg(42, "/frobnicate")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(sender.last(t).text, "/frobnicate") {
		t.Fatalf("reply = %q", sender.last(t).text)
	}
}

// --- participation -------------------------------------------------------

func TestParticipate_FirstTimeGetsCaptcha(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	parts := &fakeParticipants{}
	w := newTestWorkflow(t, db, sender, parts, &fakeGiveaways{}, &fakeMemberships{})
	ctx := context.Background()

	if err := w.HandleCallback(ctx, participate(42, 9)); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !strings.Contains(sender.last(t).text, "1 + 3 = ?") {
		t.Fatalf("captcha not sent: %q", sender.last(t).text)
	}

	st, err := repo.GetInteractionState(ctx, db, 42, time.Now().UTC())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.State != domain.StateAwaitingCaptcha || st.PendingAnswer != 4 || st.CampaignID != 9 {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestParticipate_AlreadyParticipating(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	parts := &fakeParticipants{participating: true}
	w := newTestWorkflow(t, db, sender, parts, &fakeGiveaways{}, &fakeMemberships{})

	if err := w.HandleCallback(context.Background(), participate(42, 9)); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if sender.last(t).text != msgAlreadyInGiveaway {
		t.Fatalf("reply = %q", sender.last(t).text)
	}
	if len(parts.registered) != 0 {
		t.Fatalf("registered a duplicate participant")
	}
}

func TestParticipate_VerifiedSenderSkipsCaptcha(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	parts := &fakeParticipants{regResult: clients.RegistrationResult{Confirmed: true}}
	w := newTestWorkflow(t, db, sender, parts, &fakeGiveaways{}, &fakeMemberships{})
	ctx := context.Background()

	if err := repo.MarkVerified(ctx, db, 42, 1); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	if err := w.HandleCallback(ctx, participate(42, 9)); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if len(parts.registered) != 1 {
		t.Fatalf("expected registration, got %d", len(parts.registered))
	}
	if sender.last(t).text != msgConfirmed {
		t.Fatalf("reply = %q", sender.last(t).text)
	}
}

func TestParticipate_CollaboratorDown(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	parts := &fakeParticipants{err: errors.New("connection refused")}
	w := newTestWorkflow(t, db, sender, parts, &fakeGiveaways{}, &fakeMemberships{})

	err := w.HandleCallback(context.Background(), participate(42, 9))
	if !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatalf("err = %v; want ErrCollaboratorUnavailable", err)
	}
	if sender.last(t).text != msgTryAgainLater {
		t.Fatalf("reply = %q", sender.last(t).text)
	}
}

// --- captcha -------------------------------------------------------------

func TestCaptcha_WrongThenRightAnswer(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	parts := &fakeParticipants{regResult: clients.RegistrationResult{Confirmed: true}}
	w := newTestWorkflow(t, db, sender, parts, &fakeGiveaways{}, &fakeMemberships{})
	ctx := context.Background()

	if err := w.HandleCallback(ctx, participate(42, 9)); err != nil {
		t.Fatalf("participate: %v", err)
	}

	// Wrong answer consumes one attempt.
	if err := w.HandleMessage(ctx, privateMsg(42, "5")); err != nil {
		t.Fatalf("wrong answer: %v", err)
	}
	if sender.last(t).text != msgCaptchaWrong(2) {
		t.Fatalf("reply = %q", sender.last(t).text)
	}

	// Right answer verifies, registers and confirms.
	if err := w.HandleMessage(ctx, privateMsg(42, "4")); err != nil {
		t.Fatalf("right answer: %v", err)
	}
	if sender.last(t).text != msgConfirmed {
		t.Fatalf("reply = %q", sender.last(t).text)
	}

	verified, err := repo.IsVerified(ctx, db, 42)
	if err != nil || !verified {
		t.Fatalf("verified = %v, err = %v", verified, err)
	}
	if len(parts.registered) != 1 {
		t.Fatalf("registrations = %d; want 1", len(parts.registered))
	}
	if _, err := repo.GetInteractionState(ctx, db, 42, time.Now().UTC()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("session not cleared: %v", err)
	}
}

func TestCaptcha_NonNumericDoesNotConsumeAttempt(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	w := newTestWorkflow(t, db, sender, &fakeParticipants{}, &fakeGiveaways{}, &fakeMemberships{})
	ctx := context.Background()

	if err := w.HandleCallback(ctx, participate(42, 9)); err != nil {
		t.Fatalf("participate: %v", err)
	}
	if err := w.HandleMessage(ctx, privateMsg(42, "four")); err != nil {
		t.Fatalf("non-numeric: %v", err)
	}
	if sender.last(t).text != msgNumbersOnly {
		t.Fatalf("reply = %q", sender.last(t).text)
	}

	st, err := repo.GetInteractionState(ctx, db, 42, time.Now().UTC())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.AttemptCount != 0 {
		t.Fatalf("attempt count = %d; want 0", st.AttemptCount)
	}
}

func TestCaptcha_ExhaustedAttemptsRegenerate(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	w := newTestWorkflow(t, db, sender, &fakeParticipants{}, &fakeGiveaways{}, &fakeMemberships{})
	ctx := context.Background()

	challenges := 0
	w.NewChallenge = func() Challenge {
		challenges++
		return Challenge{Question: fmt.Sprintf("q%d", challenges), Answer: 100 + challenges}
	}

	if err := w.HandleCallback(ctx, participate(42, 9)); err != nil {
		t.Fatalf("participate: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.HandleMessage(ctx, privateMsg(42, "0")); err != nil {
			t.Fatalf("wrong answer %d: %v", i+1, err)
		}
	}

	// Third miss issued a fresh challenge with reset attempts.
	if challenges != 2 {
		t.Fatalf("challenges generated = %d; want 2", challenges)
	}
	if !strings.Contains(sender.last(t).text, "q2") {
		t.Fatalf("reply = %q", sender.last(t).text)
	}
	st, err := repo.GetInteractionState(ctx, db, 42, time.Now().UTC())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.AttemptCount != 0 || st.PendingAnswer != 102 {
		t.Fatalf("unexpected state after regeneration: %+v", st)
	}
}

func TestCaptcha_ExpiredSession(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	w := newTestWorkflow(t, db, sender, &fakeParticipants{}, &fakeGiveaways{}, &fakeMemberships{})
	ctx := context.Background()

	// Answers with no live session get the generic hint, not a captcha path.
	if err := w.HandleMessage(ctx, privateMsg(42, "4")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if sender.last(t).text != msgGeneralHint {
		t.Fatalf("reply = %q", sender.last(t).text)
	}
}

// --- subscription gating ---------------------------------------------------

func TestSubscription_RequiredThenJoined(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	target := clients.SubscriptionTarget{ChannelID: -100, ChannelUsername: "@mychannel"}
	parts := &fakeParticipants{regResult: clients.RegistrationResult{
		RequiresSubscription: true,
		SubscriptionTargets:  []clients.SubscriptionTarget{target},
	}}
	members := &fakeMemberships{targets: []clients.SubscriptionTarget{target}}
	w := newTestWorkflow(t, db, sender, parts, &fakeGiveaways{}, members)
	ctx := context.Background()

	if err := repo.MarkVerified(ctx, db, 42, 1); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
	if err := w.HandleCallback(ctx, participate(42, 9)); err != nil {
		t.Fatalf("participate: %v", err)
	}
	if sender.last(t).keyboard == nil {
		t.Fatalf("subscription prompt has no keyboard")
	}
	st, err := repo.GetInteractionState(ctx, db, 42, time.Now().UTC())
	if err != nil || st.State != domain.StateAwaitingSubscription {
		t.Fatalf("state = %+v, err = %v", st, err)
	}

	// Not joined yet: the check re-prompts.
	check := telegram.InboundCallback{SenderID: 42, Action: telegram.CheckSubscriptionAction{CampaignID: 9}}
	if err := w.HandleCallback(ctx, check); err != nil {
		t.Fatalf("check: %v", err)
	}
	if sender.last(t).text != msgStillNotSubscribed {
		t.Fatalf("reply = %q", sender.last(t).text)
	}

	// The registrar no longer gates once the user joined.
	members.member = true
	parts.regResult = clients.RegistrationResult{Confirmed: true}
	if err := w.HandleCallback(ctx, check); err != nil {
		t.Fatalf("check after join: %v", err)
	}
	if sender.last(t).text != msgConfirmed {
		t.Fatalf("reply = %q", sender.last(t).text)
	}
}

func TestSubscription_CheckWithoutSession(t *testing.T) {
	db := newServiceDB(t)
	sender := &fakeSender{}
	w := newTestWorkflow(t, db, sender, &fakeParticipants{}, &fakeGiveaways{}, &fakeMemberships{})

	check := telegram.InboundCallback{SenderID: 42, Action: telegram.CheckSubscriptionAction{CampaignID: 9}}
	if err := w.HandleCallback(context.Background(), check); err != nil {
		t.Fatalf("check: %v", err)
	}
	if sender.last(t).text != msgSessionExpired {
		t.Fatalf("reply = %q", sender.last(t).text)
	}
}

// --- results ---------------------------------------------------------------

func TestViewResults(t *testing.T) {
	results := telegram.InboundCallback{SenderID: 42, Action: telegram.ViewResultsAction{Token: "tok"}}

	t.Run("still ongoing", func(t *testing.T) {
		db := newServiceDB(t)
		sender := &fakeSender{}
		g := &fakeGiveaways{campaign: &clients.Campaign{ID: 9, Status: clients.CampaignActive}}
		w := newTestWorkflow(t, db, sender, &fakeParticipants{}, g, &fakeMemberships{})

		if err := w.HandleCallback(context.Background(), results); err != nil {
			t.Fatalf("HandleCallback: %v", err)
		}
		if sender.last(t).text != msgResultsPending {
			t.Fatalf("reply = %q", sender.last(t).text)
		}
	})

	t.Run("winner with custom message", func(t *testing.T) {
		db := newServiceDB(t)
		sender := &fakeSender{}
		g := &fakeGiveaways{campaign: &clients.Campaign{ID: 9, Status: clients.CampaignFinished, WinnerMessage: "custom win"}}
		p := &fakeParticipants{winner: clients.WinnerStatus{Participated: true, IsWinner: true}}
		w := newTestWorkflow(t, db, sender, p, g, &fakeMemberships{})

		if err := w.HandleCallback(context.Background(), results); err != nil {
			t.Fatalf("HandleCallback: %v", err)
		}
		if sender.last(t).text != "custom win" {
			t.Fatalf("reply = %q", sender.last(t).text)
		}
	})

	t.Run("loser default message", func(t *testing.T) {
		db := newServiceDB(t)
		sender := &fakeSender{}
		g := &fakeGiveaways{campaign: &clients.Campaign{ID: 9, Status: clients.CampaignFinished}}
		p := &fakeParticipants{winner: clients.WinnerStatus{Participated: true}}
		w := newTestWorkflow(t, db, sender, p, g, &fakeMemberships{})

		if err := w.HandleCallback(context.Background(), results); err != nil {
			t.Fatalf("HandleCallback: %v", err)
		}
		if sender.last(t).text != msgDefaultLoserText {
			t.Fatalf("reply = %q", sender.last(t).text)
		}
	})

	t.Run("did not participate", func(t *testing.T) {
		db := newServiceDB(t)
		sender := &fakeSender{}
		g := &fakeGiveaways{campaign: &clients.Campaign{ID: 9, Status: clients.CampaignFinished}}
		w := newTestWorkflow(t, db, sender, &fakeParticipants{}, g, &fakeMemberships{})

		if err := w.HandleCallback(context.Background(), results); err != nil {
			t.Fatalf("HandleCallback: %v", err)
		}
		if sender.last(t).text != msgDidNotParticipate {
			t.Fatalf("reply = %q", sender.last(t).text)
		}
	})
}
