// Callback token codec.
//
// Interactive buttons are stateless on the platform side: the only context
// a click carries is the opaque token placed in the button at send time.
// The wire format is the flat "action_param1_param2" string the platform
// already speaks; this file encodes it from typed values and parses it back
// into a typed variant immediately, so raw token strings never travel past
// this boundary.
//
// Action names may themselves contain underscores ("view_results"), so
// parsing matches the known action names longest-first instead of naively
// splitting on the separator.
package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadCallback indicates a callback token that does not match any known
// action or carries malformed parameters.
var ErrBadCallback = errors.New("unrecognized callback token")

// CallbackAction is the typed form of a button token. It is a closed set:
// ParticipateAction, ViewResultsAction or CheckSubscriptionAction.
type CallbackAction interface {
	// Encode renders the token in its wire format.
	Encode() string
	callbackAction()
}

// ParticipateAction is the PARTICIPATE button on a giveaway post.
type ParticipateAction struct {
	CampaignID int64
}

// Encode implements CallbackAction.
func (a ParticipateAction) Encode() string {
	return fmt.Sprintf("participate_%d", a.CampaignID)
}

func (ParticipateAction) callbackAction() {}

// ViewResultsAction is the VIEW RESULTS button on a conclusion post. Token
// is the opaque result token resolved via the giveaway collaborator.
type ViewResultsAction struct {
	Token string
}

// Encode implements CallbackAction.
func (a ViewResultsAction) Encode() string {
	return "view_results_" + a.Token
}

func (ViewResultsAction) callbackAction() {}

// CheckSubscriptionAction is the "I Joined" button under a subscription
// prompt; clicking it re-runs the membership check.
type CheckSubscriptionAction struct {
	CampaignID int64
}

// Encode implements CallbackAction.
func (a CheckSubscriptionAction) Encode() string {
	return fmt.Sprintf("check_subscription_%d", a.CampaignID)
}

func (CheckSubscriptionAction) callbackAction() {}

// ParseCallback decodes a wire token into its typed variant. Unknown
// actions and malformed parameters return ErrBadCallback.
func ParseCallback(data string) (CallbackAction, error) {
	switch {
	case strings.HasPrefix(data, "view_results_"):
		token := strings.TrimPrefix(data, "view_results_")
		if token == "" {
			return nil, ErrBadCallback
		}
		return ViewResultsAction{Token: token}, nil

	case strings.HasPrefix(data, "check_subscription_"):
		id, err := parseID(strings.TrimPrefix(data, "check_subscription_"))
		if err != nil {
			return nil, err
		}
		return CheckSubscriptionAction{CampaignID: id}, nil

	case strings.HasPrefix(data, "participate_"):
		id, err := parseID(strings.TrimPrefix(data, "participate_"))
		if err != nil {
			return nil, err
		}
		return ParticipateAction{CampaignID: id}, nil

	default:
		return nil, ErrBadCallback
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadCallback
	}
	return id, nil
}
