package bot

const (
	msgIntro = "Hi! This is the community bot.\n\n" +
		"/start - join the community\n" +
		"/profile - show your profile\n" +
		"/meetings - turn offline meeting invitations on or off\n" +
		"/contacts - turn contact sharing on or off\n" +
		"/delete - delete your profile\n" +
		"/cancel - stop the current dialogue\n\n" +
		"Send \"" + matchButtonLabel + "\" to get introduced to a member who does what you do."

	msgWelcome           = "Hi, welcome to the Community!\n\nWhat is your name?"
	msgAskCity           = "Hi, %s!\nChoose your city!"
	msgAskActivity       = "What do you do?"
	msgAskMeetings       = "Are you ready to get invitations to offline meetings?"
	msgAskMentor         = "Would you like to take part in the mentorship program?"
	msgAskContacts       = "Would you like to join the \"contacts\" program, where you can swap contacts with any community member?"
	msgRegistered        = "Congratulations, you are registered!\nYour level: %d"
	msgContactsNoHandle  = "Contact sharing stays off until you set a username in your chat profile."
	msgAlreadyRegistered = "You are already registered!"
	msgCancelled         = "Cancelled. Send /start whenever you are ready."
	msgNothingToCancel   = "There is nothing to cancel."
	msgMenuExpired       = "This menu has expired."

	msgMeetingsOn  = "Meeting invitations are now on."
	msgMeetingsOff = "Meeting invitations are now off."
	msgContactsOn  = "Contact sharing is now on."
	msgContactsOff = "Contact sharing is now off."
	msgDeleted     = "Your profile has been deleted."

	msgProfile = "Your profile\n\n" +
		"Name: %s\nCity: %s\nActivity: %s\nLevel: %d\n" +
		"Offline meetings: %s\nMentorship: %s\nContacts: %s\nUsername: %s"
	msgUnknownLabel = "unknown"
	msgNoHandle     = "not set"

	msgAskMatchActivity = "Who are you looking for? Choose an activity."
	msgPeerFound        = "Meet %s!\nLevel: %d\nContact: @%s"

	labelYes = "Yes"
	labelNo  = "No"

	matchButtonLabel = "Find a contact"
)

// userMessages answers user-visible errors by reason.
var userMessages = map[string]string{
	"name_expected":            "Please send your name as a text message.",
	"option_expected":          "Please choose one of the options above.",
	"unknown_option":           "That option is no longer available, please choose another one.",
	"flow_active":              "Please finish the current dialogue first, or send /cancel.",
	"not_registered":           "You are not registered yet. Send /start to join.",
	"contacts_opt_in_required": "Turn on contact sharing with /contacts to get introductions.",
	"handle_required":          "Contact sharing is unavailable: set a username in your chat profile first.",
	"no_candidate":             "Nobody matches yet, try again later.",
}

func userMessage(reason string) string {
	if msg, ok := userMessages[reason]; ok {
		return msg
	}
	return msgIntro
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
