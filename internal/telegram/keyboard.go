// Inline keyboard construction. Buttons carry either a callback token
// (encoded from a typed CallbackAction) or a plain URL.
package telegram

// InlineKeyboard is the reply_markup payload attached to outbound messages.
type InlineKeyboard struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

// Button is one interactive control. Exactly one of CallbackData or URL is
// set.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// ActionButton builds a button whose click produces the given action's
// token.
func ActionButton(text string, action CallbackAction) Button {
	return Button{Text: text, CallbackData: action.Encode()}
}

// URLButton builds a link button.
func URLButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

// SingleButton wraps one button into a one-row keyboard.
func SingleButton(b Button) *InlineKeyboard {
	return &InlineKeyboard{InlineKeyboard: [][]Button{{b}}}
}

// SubscriptionKeyboard builds the prompt shown when a required channel
// subscription is missing: a join link plus an "I Joined" re-check button.
func SubscriptionKeyboard(channelUsername string, campaignID int64) *InlineKeyboard {
	join := URLButton("📢 Join Channel", "https://t.me/"+trimAt(channelUsername))
	check := ActionButton("✅ I Joined", CheckSubscriptionAction{CampaignID: campaignID})
	return &InlineKeyboard{InlineKeyboard: [][]Button{{join}, {check}}}
}

func trimAt(username string) string {
	if len(username) > 0 && username[0] == '@' {
		return username[1:]
	}
	return username
}
