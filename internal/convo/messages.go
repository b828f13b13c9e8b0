package convo

// User-visible replies. Every rejected input names what was wrong and what
// to send instead; the engine never leaves a processed event unanswered.
const (
	msgWelcome = "Welcome! To unlock your course content I need to confirm your purchase.\n\n" +
		"Please send the email address you used at checkout."
	msgAskOrderID = "Thanks. Now send your order number (digits only — you can find it in your order confirmation email)."
	msgResumeOrder = "Welcome back! I already have your email on file.\n\n" +
		"Please send your order number (digits only) to finish verification."

	msgInvalidEmail = "That doesn't look like an email address. Please send it like name@example.com."
	msgEmailTaken   = "That email is already linked to a different Telegram account. " +
		"Please send the email you used at checkout, or contact support if you believe this is a mistake."
	msgEmailPending = "That email is already being verified from another Telegram account. " +
		"Finish there, or contact support if this isn't you."
	msgInvalidOrderID = "An order number contains digits only, for example 9001. Please check your confirmation email and try again."

	msgOrderNotFound = "I couldn't find an order with that number. Please double-check it and send it again."
	msgEmailMismatch = "That order was placed with a different email address. " +
		"Send /start to begin again with the right email, or try another order number."
	msgOrderUnpaid = "That order hasn't been paid yet. Once payment completes, send the order number again."
	msgOracleDown  = "I couldn't reach the store to check your order just now. Please send the order number again in a moment."

	msgVerified = "✅ Payment confirmed — your access is unlocked!"
	msgAlreadyVerified = "You're already verified — here is your content."
	msgPersistFailed   = "Your payment checked out, but I couldn't save your access just now. " +
		"Please contact support and we'll sort it out."

	msgBanned     = "Your account has been blocked. Please contact support if you believe this is a mistake."
	msgNeedStart  = "Send /start to begin verifying your purchase."
	msgNeedVerify = "You need to verify a purchase before browsing content. Send /start to begin."
	msgSlowDown   = "Too many messages — please slow down and try again in a minute."
	msgGenericErr = "Something went wrong on my side. Please try again."

	msgCourseNotFound = "That course is no longer available."
	msgLessonNotFound = "That lesson is no longer available."
)
