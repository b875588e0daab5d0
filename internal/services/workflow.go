// Package services – WorkflowService
//
// This file implements the per-user participation state machine. A sender
// is Idle until they click PARTICIPATE on a giveaway post; from there the
// workflow walks them through captcha verification (first time only; a
// permanent verification flag skips it afterwards), channel-subscription
// gating when the campaign requires it, and idempotent registration with
// the participant service. Result lookup is a stateless side path.
//
// Every transition that produces a reply sends it synchronously on the
// request path: these replies are the direct acknowledgment of a user
// action and do not go through the delivery ledger's retry machinery.
// Collaborator failures surface to the user as a generic "try again later"
// and abandon the operation; a stale user-initiated action is never
// retried behind the user's back.
package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/telegive/bot-service/internal/clients"
	"github.com/telegive/bot-service/internal/domain"
	"github.com/telegive/bot-service/internal/repo"
	"github.com/telegive/bot-service/internal/telegram"
)

// ParticipantAPI is the participant-record collaborator contract consumed
// by the workflow.
type ParticipantAPI interface {
	Register(ctx context.Context, campaignID, senderID int64, info clients.UserInfo) (clients.RegistrationResult, error)
	IsParticipating(ctx context.Context, campaignID, senderID int64) (bool, error)
	CheckWinnerStatus(ctx context.Context, campaignID, senderID int64) (clients.WinnerStatus, error)
}

// GiveawayAPI is the giveaway-metadata collaborator contract.
type GiveawayAPI interface {
	ResolveByToken(ctx context.Context, token string) (*clients.Campaign, error)
}

// MembershipAPI is the channel-membership collaborator contract.
type MembershipAPI interface {
	VerifySubscription(ctx context.Context, senderID int64, target clients.SubscriptionTarget) (bool, error)
	SubscriptionTargets(ctx context.Context, campaignID int64) ([]clients.SubscriptionTarget, error)
}

// Challenge is one generated captcha: the question shown to the user and
// the answer expected back.
type Challenge struct {
	Question string
	Answer   int
}

// WorkflowService drives the participation state machine. All state lives
// in the database; the service itself is stateless and safe for concurrent
// use across goroutines and service instances.
type WorkflowService struct {
	DB           *gorm.DB
	Sender       telegram.Sender
	Participants ParticipantAPI
	Giveaways    GiveawayAPI
	Memberships  MembershipAPI

	// StateTTL bounds how long an interaction session stays answerable.
	StateTTL time.Duration
	// MaxCaptchaAttempts is the per-challenge wrong-answer budget.
	MaxCaptchaAttempts int
	// NewChallenge generates a captcha. Overridable in tests; defaults to
	// two random integers in [1,10] summed.
	NewChallenge func() Challenge
}

// NewWorkflowService constructs a WorkflowService with default TTL,
// attempt budget and challenge generator.
func NewWorkflowService(db *gorm.DB, sender telegram.Sender, p ParticipantAPI, g GiveawayAPI, m MembershipAPI) *WorkflowService {
	return &WorkflowService{
		DB:                 db,
		Sender:             sender,
		Participants:       p,
		Giveaways:          g,
		Memberships:        m,
		StateTTL:           time.Hour,
		MaxCaptchaAttempts: 3,
		NewChallenge:       randomChallenge,
	}
}

func randomChallenge() Challenge {
	a := rand.IntN(10) + 1
	b := rand.IntN(10) + 1
	return Challenge{
		Question: fmt.Sprintf("%d + %d = ?", a, b),
		Answer:   a + b,
	}
}

// HandleMessage processes an inbound text message: commands, captcha
// answers when a session is live, or a generic hint otherwise. Messages
// from group or channel chats are ignored without a reply.
func (w *WorkflowService) HandleMessage(ctx context.Context, msg telegram.InboundMessage) error {
	if !msg.Private() {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		return w.handleCommand(ctx, msg.SenderID, text)
	}

	st, err := repo.GetInteractionState(ctx, w.DB, msg.SenderID, time.Now().UTC())
	switch {
	case err == nil && st.State == domain.StateAwaitingCaptcha:
		return w.handleCaptchaAnswer(ctx, msg.SenderID, text, st)
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return err
	default:
		return w.reply(ctx, msg.SenderID, msgGeneralHint, nil)
	}
}

// HandleCallback processes a button click. The callback token has already
// been decoded into its typed variant by the intake pipeline.
func (w *WorkflowService) HandleCallback(ctx context.Context, cb telegram.InboundCallback) error {
	switch action := cb.Action.(type) {
	case telegram.ParticipateAction:
		return w.handleParticipate(ctx, cb.SenderID, action.CampaignID, cb.FromChannel)
	case telegram.ViewResultsAction:
		return w.handleViewResults(ctx, cb.SenderID, action.Token)
	case telegram.CheckSubscriptionAction:
		return w.handleSubscriptionCheck(ctx, cb.SenderID, action.CampaignID)
	default:
		return fmt.Errorf("unhandled callback action %T", cb.Action)
	}
}

// --- commands -------------------------------------------------------------

func (w *WorkflowService) handleCommand(ctx context.Context, senderID int64, text string) error {
	cmd := strings.ToLower(strings.Fields(text)[0])
	switch cmd {
	case "/start":
		if err := repo.ClearInteractionState(ctx, w.DB, senderID); err != nil {
			return err
		}
		return w.reply(ctx, senderID, msgWelcome, nil)
	case "/help":
		return w.reply(ctx, senderID, msgHelp, nil)
	case "/cancel":
		st, err := repo.GetInteractionState(ctx, w.DB, senderID, time.Now().UTC())
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if st == nil || st.State == domain.StateIdle {
			return w.reply(ctx, senderID, msgNothingToCancel, nil)
		}
		if err := repo.ClearInteractionState(ctx, w.DB, senderID); err != nil {
			return err
		}
		return w.reply(ctx, senderID, msgCancelled, nil)
	default:
		return w.reply(ctx, senderID, msgUnknownCommand(cmd), nil)
	}
}

// --- participate ----------------------------------------------------------

func (w *WorkflowService) handleParticipate(ctx context.Context, senderID, campaignID int64, fromChannel bool) error {
	participating, err := w.Participants.IsParticipating(ctx, campaignID, senderID)
	if err != nil {
		return w.failSoft(ctx, senderID, err)
	}
	if participating {
		return w.reply(ctx, senderID, msgAlreadyInGiveaway, nil)
	}

	verified, err := repo.IsVerified(ctx, w.DB, senderID)
	if err != nil {
		return err
	}
	if !verified {
		return w.issueChallenge(ctx, senderID, campaignID, msgCaptchaChallenge)
	}
	return w.register(ctx, senderID, campaignID, fromChannel)
}

// issueChallenge generates a fresh captcha, persists it as the sender's
// live session, and sends the question. render picks the message framing
// (first challenge vs. regenerated one).
func (w *WorkflowService) issueChallenge(ctx context.Context, senderID, campaignID int64, render func(string) string) error {
	ch := w.NewChallenge()
	st := &domain.InteractionState{
		SenderID:      senderID,
		State:         domain.StateAwaitingCaptcha,
		CampaignID:    campaignID,
		PendingAnswer: ch.Answer,
		AttemptCount:  0,
		MaxAttempts:   w.MaxCaptchaAttempts,
		QuestionText:  ch.Question,
		ExpiresAt:     time.Now().UTC().Add(w.StateTTL),
	}
	if err := repo.PutInteractionState(ctx, w.DB, st); err != nil {
		return err
	}
	return w.reply(ctx, senderID, render(ch.Question), nil)
}

// --- captcha --------------------------------------------------------------

func (w *WorkflowService) handleCaptchaAnswer(ctx context.Context, senderID int64, text string, st *domain.InteractionState) error {
	if st.Expired(time.Now().UTC()) {
		if err := repo.ClearInteractionState(ctx, w.DB, senderID); err != nil {
			return err
		}
		return w.reply(ctx, senderID, msgSessionExpired, nil)
	}

	answer, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		// Not an answer attempt; does not consume the budget.
		return w.reply(ctx, senderID, msgNumbersOnly, nil)
	}

	if answer == st.PendingAnswer {
		if err := repo.MarkVerified(ctx, w.DB, senderID, st.CampaignID); err != nil {
			return err
		}
		if err := repo.ClearInteractionState(ctx, w.DB, senderID); err != nil {
			return err
		}
		return w.register(ctx, senderID, st.CampaignID, false)
	}

	attempts, err := repo.IncrementCaptchaAttempts(ctx, w.DB, senderID, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return w.reply(ctx, senderID, msgSessionExpired, nil)
	}
	if err != nil {
		return err
	}

	if attempts >= st.MaxAttempts {
		// Exhausting the budget issues a fresh challenge with a reset
		// counter instead of locking the user out.
		// TODO(product): confirm whether a hard lockout or escalating delay
		// is wanted here; today a user can guess indefinitely.
		return w.issueChallenge(ctx, senderID, st.CampaignID, msgCaptchaFresh)
	}
	return w.reply(ctx, senderID, msgCaptchaWrong(st.MaxAttempts-attempts), nil)
}

// --- registration & subscription gating ------------------------------------

// register performs the idempotent registration call and routes its
// outcome: confirmation, duplicate no-op, or subscription gating.
func (w *WorkflowService) register(ctx context.Context, senderID, campaignID int64, fromChannel bool) error {
	res, err := w.Participants.Register(ctx, campaignID, senderID, clients.UserInfo{FromChannel: fromChannel})
	if err != nil {
		return w.failSoft(ctx, senderID, err)
	}

	switch {
	case res.AlreadyParticipating:
		if err := repo.ClearInteractionState(ctx, w.DB, senderID); err != nil {
			return err
		}
		return w.reply(ctx, senderID, msgAlreadyInGiveaway, nil)

	case res.RequiresSubscription:
		return w.promptSubscription(ctx, senderID, campaignID, res.SubscriptionTargets, msgSubscriptionNeeded)

	default:
		if err := repo.ClearInteractionState(ctx, w.DB, senderID); err != nil {
			return err
		}
		return w.reply(ctx, senderID, msgConfirmed, nil)
	}
}

// promptSubscription stores the awaiting_subscription session and sends an
// actionable prompt: a join link plus a re-check button, never a bare error.
func (w *WorkflowService) promptSubscription(ctx context.Context, senderID, campaignID int64, targets []clients.SubscriptionTarget, text string) error {
	st := &domain.InteractionState{
		SenderID:   senderID,
		State:      domain.StateAwaitingSubscription,
		CampaignID: campaignID,
		ExpiresAt:  time.Now().UTC().Add(w.StateTTL),
	}
	if err := repo.PutInteractionState(ctx, w.DB, st); err != nil {
		return err
	}

	var keyboard *telegram.InlineKeyboard
	if len(targets) > 0 {
		keyboard = telegram.SubscriptionKeyboard(targets[0].ChannelUsername, campaignID)
	} else {
		keyboard = telegram.SingleButton(
			telegram.ActionButton("✅ I Joined", telegram.CheckSubscriptionAction{CampaignID: campaignID}))
	}
	return w.reply(ctx, senderID, text, keyboard)
}

func (w *WorkflowService) handleSubscriptionCheck(ctx context.Context, senderID, campaignID int64) error {
	st, err := repo.GetInteractionState(ctx, w.DB, senderID, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return w.reply(ctx, senderID, msgSessionExpired, nil)
	}
	if err != nil {
		return err
	}
	if st.State != domain.StateAwaitingSubscription || st.CampaignID != campaignID {
		return w.reply(ctx, senderID, msgSessionExpired, nil)
	}

	targets, err := w.Memberships.SubscriptionTargets(ctx, campaignID)
	if err != nil {
		return w.failSoft(ctx, senderID, err)
	}
	for _, target := range targets {
		member, err := w.Memberships.VerifySubscription(ctx, senderID, target)
		if err != nil {
			return w.failSoft(ctx, senderID, err)
		}
		if !member {
			return w.promptSubscription(ctx, senderID, campaignID, targets, msgStillNotSubscribed)
		}
	}
	return w.register(ctx, senderID, campaignID, false)
}

// --- results --------------------------------------------------------------

// handleViewResults is the stateless result-lookup path; it never touches
// the sender's interaction state.
func (w *WorkflowService) handleViewResults(ctx context.Context, senderID int64, token string) error {
	campaign, err := w.Giveaways.ResolveByToken(ctx, token)
	if err != nil {
		return w.failSoft(ctx, senderID, err)
	}
	if campaign.Status != clients.CampaignFinished {
		return w.reply(ctx, senderID, msgResultsPending, nil)
	}

	status, err := w.Participants.CheckWinnerStatus(ctx, campaign.ID, senderID)
	if err != nil {
		return w.failSoft(ctx, senderID, err)
	}
	if !status.Participated {
		return w.reply(ctx, senderID, msgDidNotParticipate, nil)
	}

	text := campaign.LoserMessage
	if status.IsWinner {
		text = campaign.WinnerMessage
		if text == "" {
			text = msgDefaultWinnerText
		}
	} else if text == "" {
		text = msgDefaultLoserText
	}
	return w.reply(ctx, senderID, text, nil)
}

// --- helpers ----------------------------------------------------------------

// reply delivers a synchronous acknowledgment of a user action. It does
// not go through the delivery ledger: there is no meaningful retry for a
// conversational reply the user is waiting on right now.
func (w *WorkflowService) reply(ctx context.Context, senderID int64, text string, keyboard *telegram.InlineKeyboard) error {
	if _, err := w.Sender.Send(ctx, senderID, text, keyboard); err != nil {
		return err
	}
	return nil
}

// failSoft reports a collaborator failure to the user as a generic retry
// hint and abandons the operation with ErrCollaboratorUnavailable.
func (w *WorkflowService) failSoft(ctx context.Context, senderID int64, cause error) error {
	log.Warn().Err(cause).Int64("sender_id", senderID).Msg("collaborator call failed")
	if _, err := w.Sender.Send(ctx, senderID, msgTryAgainLater, nil); err != nil {
		log.Warn().Err(err).Int64("sender_id", senderID).Msg("failed to send fallback reply")
	}
	return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, cause)
}
