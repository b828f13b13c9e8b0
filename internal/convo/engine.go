// Package convo drives the per-chat verification dialogue and the content
// browsing sub-protocol behind it.
package convo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/openlearnhq/coursegate/internal/activity"
	"github.com/openlearnhq/coursegate/internal/menu"
	"github.com/openlearnhq/coursegate/internal/metrics"
	"github.com/openlearnhq/coursegate/internal/ratelimit"
	"github.com/openlearnhq/coursegate/internal/store"
	"github.com/openlearnhq/coursegate/internal/woocommerce"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

// Replier sends outbound chat messages. The engine never talks to the
// transport directly so the connection can be rebuilt underneath it.
type Replier interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *tgmodels.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Oracle confirms order payment. Transport failures surface as errors and
// are never treated as a verification outcome.
type Oracle interface {
	Verify(ctx context.Context, orderID, email string) (woocommerce.Result, error)
}

// CourseSource lists the active courses for the top-level menu.
type CourseSource interface {
	ActiveCourses(ctx context.Context) ([]store.Course, error)
}

// Config holds the engine's collaborators.
type Config struct {
	Records      store.RecordStore
	Courses      CourseSource
	Oracle       Oracle
	Sessions     *SessionStore
	Limiter      *ratelimit.Limiter
	Activity     *activity.Recorder
	Metrics      *metrics.Metrics
	Logger       logger.Logger
	SummaryLimit int
}

// Engine is the per-chat verification state machine.
type Engine struct {
	records      store.RecordStore
	courses      CourseSource
	oracle       Oracle
	sessions     *SessionStore
	limiter      *ratelimit.Limiter
	activity     *activity.Recorder
	metrics      *metrics.Metrics
	log          logger.Logger
	summaryLimit int
}

// NewEngine creates a conversation engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if cfg.Courses == nil {
		return nil, fmt.Errorf("course source is required")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	summaryLimit := cfg.SummaryLimit
	if summaryLimit <= 0 {
		summaryLimit = 200
	}
	return &Engine{
		records:      cfg.Records,
		courses:      cfg.Courses,
		oracle:       cfg.Oracle,
		sessions:     cfg.Sessions,
		limiter:      cfg.Limiter,
		activity:     cfg.Activity,
		metrics:      cfg.Metrics,
		log:          cfg.Logger.WithFields(logger.StringField("component", "convo")),
		summaryLimit: summaryLimit,
	}, nil
}

// HandleMessage processes one inbound text message for a chat identity.
func (e *Engine) HandleMessage(ctx context.Context, r Replier, chatID int64, text string) {
	e.countInbound("message")

	if !e.allow(chatID) {
		e.reply(ctx, r, chatID, msgSlowDown, nil)
		return
	}

	lock := e.sessions.Acquire(chatID)
	defer lock.Release()

	switch command(text) {
	case "/start":
		e.handleStart(ctx, r, chatID, lock)
	case "/menu":
		e.handleMenuCommand(ctx, r, chatID)
	default:
		e.handleFreeText(ctx, r, chatID, lock, text)
	}
}

// HandleCallback processes one inline keyboard selection.
func (e *Engine) HandleCallback(ctx context.Context, r Replier, chatID int64, callbackID, data string) {
	e.countInbound("callback")

	// Callbacks are acknowledged regardless of outcome so the client stops
	// showing a spinner.
	if err := r.AnswerCallback(ctx, callbackID); err != nil {
		e.log.Debug("failed to answer callback", logger.ChatIDField(chatID), logger.ErrorField(err))
	}

	if !e.allow(chatID) {
		e.reply(ctx, r, chatID, msgSlowDown, nil)
		return
	}

	user, err := e.records.GetUserByChatID(ctx, chatID)
	if err != nil {
		e.fail(ctx, r, chatID, "load user for callback", err)
		return
	}
	if !canBrowse(user) {
		e.reply(ctx, r, chatID, refusal(user), nil)
		return
	}

	switch {
	case data == menu.SelectorMenu:
		e.sendCourseMenu(ctx, r, chatID, "")
	default:
		if courseID, ok := menu.ParseCourseSelector(data); ok {
			e.sendCourseView(ctx, r, chatID, courseID)
			return
		}
		if lessonID, ok := menu.ParseLessonSelector(data); ok {
			e.sendLessonView(ctx, r, chatID, lessonID)
			return
		}
		e.log.Debug("unknown callback selector", logger.ChatIDField(chatID), logger.StringField("data", data))
	}
}

// handleStart implements the /start transition table.
func (e *Engine) handleStart(ctx context.Context, r Replier, chatID int64, lock *ChatLock) {
	user, err := e.records.GetUserByChatID(ctx, chatID)
	if err != nil {
		e.fail(ctx, r, chatID, "load user on start", err)
		return
	}

	switch {
	case user != nil && user.Banned:
		e.reply(ctx, r, chatID, msgBanned, nil)

	case user != nil && user.Verified:
		// Idempotent: re-issuing /start after verification is safe and does
		// not touch session state.
		e.sendCourseMenu(ctx, r, chatID, msgAlreadyVerified)

	case user != nil:
		// Known but unverified: skip the email step. The stored email is
		// unique to this chat, so the reservation can only collide with a
		// stale in-flight session elsewhere.
		if !lock.Set(Session{Step: StepAwaitingOrderID, PendingEmail: user.Email}) {
			e.reply(ctx, r, chatID, msgEmailPending, nil)
			return
		}
		e.reply(ctx, r, chatID, msgResumeOrder, nil)

	default:
		lock.Set(Session{Step: StepAwaitingEmail})
		e.recordActivity(ctx, activity.KindVerificationStarted, "verification dialogue started", chatID)
		e.reply(ctx, r, chatID, msgWelcome, nil)
	}
}

// handleFreeText dispatches free-form input on the current session step.
func (e *Engine) handleFreeText(ctx context.Context, r Replier, chatID int64, lock *ChatLock, text string) {
	sess, ok := lock.Get()
	if !ok {
		// No session is created for noise; the user is told how to begin.
		e.reply(ctx, r, chatID, msgNeedStart, nil)
		return
	}

	switch sess.Step {
	case StepAwaitingEmail:
		e.acceptEmail(ctx, r, chatID, lock, text)
	case StepAwaitingOrderID:
		e.acceptOrderID(ctx, r, chatID, lock, sess, text)
	default:
		e.log.Warn("session in unknown step", logger.ChatIDField(chatID), logger.IntField("step", int(sess.Step)))
		lock.Clear()
		e.reply(ctx, r, chatID, msgNeedStart, nil)
	}
}

// acceptEmail validates the email and enforces the one-email-one-chat rule.
func (e *Engine) acceptEmail(ctx context.Context, r Replier, chatID int64, lock *ChatLock, text string) {
	email, valid := SanitizeEmail(text)
	if !valid {
		e.reply(ctx, r, chatID, msgInvalidEmail, nil)
		return
	}

	existing, err := e.records.GetUserByEmail(ctx, email)
	if err != nil {
		e.fail(ctx, r, chatID, "check email uniqueness", err)
		return
	}
	if existing != nil && existing.ChatID != chatID {
		e.reply(ctx, r, chatID, msgEmailTaken, nil)
		return
	}

	// Set also reserves the email against other chats' in-flight sessions,
	// so two chats can never carry the same email into verification.
	if !lock.Set(Session{Step: StepAwaitingOrderID, PendingEmail: email}) {
		e.reply(ctx, r, chatID, msgEmailPending, nil)
		return
	}
	e.reply(ctx, r, chatID, msgAskOrderID, nil)
}

// acceptOrderID validates the order id and runs the verification gate.
func (e *Engine) acceptOrderID(ctx context.Context, r Replier, chatID int64, lock *ChatLock, sess Session, text string) {
	orderID, valid := SanitizeOrderID(text)
	if !valid {
		e.reply(ctx, r, chatID, msgInvalidOrderID, nil)
		return
	}

	result, err := e.oracle.Verify(ctx, orderID, sess.PendingEmail)
	if err != nil {
		// Ambiguous failure: never advance state, let the user retry.
		e.log.Warn("order verification call failed",
			logger.ChatIDField(chatID),
			logger.StringField("order_id", orderID),
			logger.ErrorField(err),
		)
		e.countVerification("transient_error")
		e.reply(ctx, r, chatID, msgOracleDown, nil)
		return
	}

	if !result.Paid() {
		e.countVerification(string(result.Outcome))
		e.recordActivity(ctx, activity.KindVerificationFailed,
			fmt.Sprintf("order %s rejected: %s", orderID, result.Outcome), chatID)
		e.reply(ctx, r, chatID, rejection(result.Outcome), nil)
		return
	}

	user, err := e.records.UpsertVerifiedUser(ctx, store.UpsertUserParams{
		ChatID:   chatID,
		Email:    sess.PendingEmail,
		Verified: true,
		OrderID:  orderID,
	})
	if err != nil {
		// The payment is confirmed but no record exists. Keep the session so
		// the user is never left verified-in-name-only.
		e.log.Error("failed to persist verified user",
			logger.ChatIDField(chatID),
			logger.StringField("order_id", orderID),
			logger.ErrorField(err),
		)
		e.countVerification("persist_failed")
		e.reply(ctx, r, chatID, msgPersistFailed, nil)
		return
	}

	lock.Clear()
	e.countVerification("paid")
	e.recordActivity(ctx, activity.KindVerified,
		fmt.Sprintf("order %s verified for %s", orderID, user.Email), chatID)
	e.sendCourseMenu(ctx, r, chatID, msgVerified)
}

// handleMenuCommand serves the top-level menu to verified users only.
func (e *Engine) handleMenuCommand(ctx context.Context, r Replier, chatID int64) {
	user, err := e.records.GetUserByChatID(ctx, chatID)
	if err != nil {
		e.fail(ctx, r, chatID, "load user for menu", err)
		return
	}
	if !canBrowse(user) {
		e.reply(ctx, r, chatID, refusal(user), nil)
		return
	}
	e.sendCourseMenu(ctx, r, chatID, "")
}

func (e *Engine) sendCourseMenu(ctx context.Context, r Replier, chatID int64, prefix string) {
	courses, err := e.courses.ActiveCourses(ctx)
	if err != nil {
		e.fail(ctx, r, chatID, "list courses", err)
		return
	}
	text, kb := menu.CourseList(courses)
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	e.reply(ctx, r, chatID, text, kb)
}

func (e *Engine) sendCourseView(ctx context.Context, r Replier, chatID int64, courseID int64) {
	course, err := e.records.GetCourse(ctx, courseID)
	if err != nil {
		e.fail(ctx, r, chatID, "load course", err)
		return
	}
	if course == nil {
		e.reply(ctx, r, chatID, msgCourseNotFound, nil)
		return
	}

	lessons, err := e.records.ListSubcontent(ctx, course.ID)
	if err != nil {
		e.fail(ctx, r, chatID, "list lessons", err)
		return
	}

	text, kb := menu.CourseView(*course, lessons, e.summaryLimit)
	e.reply(ctx, r, chatID, text, kb)
}

func (e *Engine) sendLessonView(ctx context.Context, r Replier, chatID int64, lessonID int64) {
	lesson, err := e.records.GetSubcontent(ctx, lessonID)
	if err != nil {
		e.fail(ctx, r, chatID, "load lesson", err)
		return
	}
	if lesson == nil {
		e.reply(ctx, r, chatID, msgLessonNotFound, nil)
		return
	}

	text, kb := menu.LessonView(*lesson)
	e.reply(ctx, r, chatID, text, kb)
}

// reply sends an outbound message; send failures are logged, not propagated.
func (e *Engine) reply(ctx context.Context, r Replier, chatID int64, text string, kb *tgmodels.InlineKeyboardMarkup) {
	if err := r.SendMessage(ctx, chatID, text, kb); err != nil {
		e.log.Error("failed to send message", logger.ChatIDField(chatID), logger.ErrorField(err))
		if e.metrics != nil {
			e.metrics.Errors.WithLabelValues("convo_send").Inc()
		}
		return
	}
	if e.metrics != nil {
		e.metrics.OutboundMessages.WithLabelValues("text").Inc()
	}
}

// fail handles unexpected errors: log, count, apologize, leave state alone.
func (e *Engine) fail(ctx context.Context, r Replier, chatID int64, op string, err error) {
	e.log.Error("conversation operation failed",
		logger.ChatIDField(chatID),
		logger.StringField("op", op),
		logger.ErrorField(err),
	)
	if e.metrics != nil {
		e.metrics.Errors.WithLabelValues("convo").Inc()
	}
	e.reply(ctx, r, chatID, msgGenericErr, nil)
}

func (e *Engine) allow(chatID int64) bool {
	if e.limiter == nil {
		return true
	}
	if e.limiter.Allow(strconv.FormatInt(chatID, 10)) {
		return true
	}
	if e.metrics != nil {
		e.metrics.RateLimitedDrops.WithLabelValues("chat").Inc()
	}
	return false
}

func (e *Engine) countInbound(kind string) {
	if e.metrics != nil {
		e.metrics.InboundUpdates.WithLabelValues(kind).Inc()
	}
}

func (e *Engine) countVerification(outcome string) {
	if e.metrics != nil {
		e.metrics.Verifications.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) recordActivity(ctx context.Context, kind, description string, chatID int64) {
	if e.activity != nil {
		e.activity.Record(ctx, kind, description, strconv.FormatInt(chatID, 10))
	}
}

// command extracts the leading bot command from a message, ignoring the
// @botname suffix Telegram appends in groups.
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// canBrowse reports whether the user may access content menus.
func canBrowse(user *store.User) bool {
	return user != nil && user.Verified && !user.Banned
}

// refusal picks the explanatory message for a user denied content access.
func refusal(user *store.User) string {
	if user != nil && user.Banned {
		return msgBanned
	}
	return msgNeedVerify
}

// rejection maps a non-paid oracle outcome to its actionable user message.
func rejection(outcome woocommerce.Outcome) string {
	switch outcome {
	case woocommerce.OutcomeNotFound:
		return msgOrderNotFound
	case woocommerce.OutcomeEmailMismatch:
		return msgEmailMismatch
	case woocommerce.OutcomeUnpaid:
		return msgOrderUnpaid
	default:
		return msgGenericErr
	}
}
