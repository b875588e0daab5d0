// User-facing reply texts. Kept in one place so copy changes never touch
// workflow logic. HTML parse mode is assumed by the sender.
package services

import "fmt"

const (
	msgWelcome = `🤖 <b>Welcome to the Giveaway Bot!</b>

I help you participate in giveaways and check results.

<b>How to use:</b>
• Click the PARTICIPATE button on giveaway posts
• I'll guide you through the participation process
• Use VIEW RESULTS button to check if you won

<b>Commands:</b>
/help - Show this help message
/cancel - Cancel current operation

Good luck! 🍀`

	msgHelp = `🆘 <b>Giveaway Bot Help</b>

<b>Participating in Giveaways:</b>
1. Find a giveaway post in a channel
2. Click the 🎁 PARTICIPATE button
3. Follow the instructions I send you
4. Complete any required steps (captcha, subscriptions)

<b>Checking Results:</b>
1. Click the 🏆 VIEW RESULTS button on concluded giveaways
2. I'll tell you if you won or not

<b>Commands:</b>
/start - Start over
/help - Show this help
/cancel - Cancel current operation`

	msgGeneralHint = `ℹ️ <b>How to participate in giveaways:</b>

1. Find a giveaway post in a channel
2. Click the 🎁 PARTICIPATE button
3. I'll guide you through the process

Use /help for more information.`

	msgCancelled          = "✅ Operation cancelled. You can start a new giveaway participation anytime!"
	msgNothingToCancel    = "ℹ️ No active operation to cancel."
	msgAlreadyInGiveaway  = "ℹ️ You are already participating in this giveaway! Good luck! 🍀"
	msgTryAgainLater      = "❌ Something went wrong. Please try again later."
	msgSessionExpired     = "❌ Session expired. Please try participating again."
	msgNumbersOnly        = "Please reply with just the number. What is the answer?"
	msgConfirmed          = "🎉 <b>Participation Successful!</b>\n\nYou are now participating in the giveaway!\n\nGood luck! 🍀"
	msgResultsPending     = "⏳ This giveaway is still ongoing. Results will be available once it's finished."
	msgDidNotParticipate  = "❌ You did not participate in this giveaway."
	msgDefaultWinnerText  = "🎊 Congratulations! You are one of our lucky winners!"
	msgDefaultLoserText   = "Thank you for participating! Better luck next time! 🍀"
	msgSubscriptionNeeded = "📢 <b>Subscription Required</b>\n\nTo participate in this giveaway, you must be subscribed to the channel below. Subscribe, then press \"✅ I Joined\"."
	msgStillNotSubscribed = "❌ You are not subscribed yet. Join the channel below, then press \"✅ I Joined\" again."
)

func msgUnknownCommand(cmd string) string {
	return fmt.Sprintf("❓ Unknown command: %s\n\nUse /help to see available commands.", cmd)
}

func msgCaptchaChallenge(question string) string {
	return fmt.Sprintf("🧮 <b>Captcha Required</b>\n\nTo complete your participation, please solve this simple math problem:\n\n<b>%s</b>\n\nReply with just the number.", question)
}

func msgCaptchaWrong(remaining int) string {
	return fmt.Sprintf("❌ Incorrect. %d attempts remaining. What is the answer? Reply with just the number.", remaining)
}

func msgCaptchaFresh(question string) string {
	return fmt.Sprintf("❌ Maximum attempts reached. New question: %s\n\nReply with just the number.", question)
}
