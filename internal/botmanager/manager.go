// Package botmanager owns the single Telegram connection and rebuilds it
// when credentials change.
package botmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/openlearnhq/coursegate/internal/convo"
	"github.com/openlearnhq/coursegate/internal/credentials"
	"github.com/openlearnhq/coursegate/internal/metrics"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

// ErrConfigurationMissing is returned when no bot token is available from
// either the settings store or the environment.
var ErrConfigurationMissing = errors.New("telegram bot token is not configured")

// quiesceTimeout bounds how long a rebuild waits for the old connection's
// polling loop to drain before moving on.
const quiesceTimeout = 10 * time.Second

// Handler consumes routed updates. Satisfied by *convo.Engine.
type Handler interface {
	HandleMessage(ctx context.Context, r convo.Replier, chatID int64, text string)
	HandleCallback(ctx context.Context, r convo.Replier, chatID int64, callbackID, data string)
}

// poller is the receiving surface of a live bot. Satisfied by *bot.Bot.
type poller interface {
	Start(ctx context.Context)
}

// connection is one live polling bot. done closes when polling has stopped.
type connection struct {
	bot    poller
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager holds at most one live Telegram connection at a time. Rebuild
// swaps in a connection built from current credentials and quiesces the old
// one, so token rotation never needs a process restart.
type Manager struct {
	creds   *credentials.Source
	handler Handler
	log     logger.Logger
	metrics *metrics.Metrics
	debug   bool

	// connect builds a poller from a token. Swapped out in tests.
	connect func(token string) (poller, error)

	mu      sync.Mutex
	conn    *connection
	baseCtx context.Context
}

// New creates a manager. No connection exists until Start.
func New(creds *credentials.Source, handler Handler, m *metrics.Metrics, log logger.Logger, debug bool) *Manager {
	mgr := &Manager{
		creds:   creds,
		handler: handler,
		metrics: m,
		log:     log.WithFields(logger.StringField("component", "botmanager")),
		debug:   debug,
	}
	mgr.connect = mgr.telegramConnect
	return mgr
}

// telegramConnect builds a real Telegram bot wired to the update handler.
func (m *Manager) telegramConnect(token string) (poller, error) {
	opts := []bot.Option{
		bot.WithDefaultHandler(m.handleUpdate),
	}
	if m.debug {
		opts = append(opts, bot.WithDebug())
	}
	return bot.New(token, opts...)
}

// Start builds the first connection and begins polling. Polling runs until
// ctx is cancelled or the connection is rebuilt or stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return fmt.Errorf("bot manager already started")
	}
	m.baseCtx = ctx

	conn, err := m.build(ctx)
	if err != nil {
		return err
	}
	m.conn = conn
	m.log.Info("telegram connection started")
	return nil
}

// Rebuild replaces the live connection with one built from current
// credentials. The old connection is quiesced before the new one starts
// receiving, so two pollers never compete for the same update stream. If the
// build then fails, no connection remains until a later rebuild succeeds.
func (m *Manager) Rebuild(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.baseCtx == nil {
		return fmt.Errorf("bot manager not started")
	}

	if m.conn != nil {
		m.quiesce(m.conn)
		m.conn = nil
	}

	conn, err := m.build(ctx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.ConnectionRebuild.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("rebuild connection: %w", err)
	}

	m.conn = conn
	if m.metrics != nil {
		m.metrics.ConnectionRebuild.WithLabelValues("ok").Inc()
	}
	m.log.Info("telegram connection rebuilt")
	return nil
}

// Stop tears down the live connection. Safe to call when already stopped.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return
	}
	m.quiesce(m.conn)
	m.conn = nil
	m.log.Info("telegram connection stopped")
}

// build constructs and starts a connection from current credentials.
// Caller holds m.mu.
func (m *Manager) build(ctx context.Context) (*connection, error) {
	tg, err := m.creds.Telegram(ctx)
	if err != nil {
		return nil, fmt.Errorf("load telegram credentials: %w", err)
	}
	if tg.BotToken == "" {
		return nil, ErrConfigurationMissing
	}

	b, err := m.connect(tg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	pollCtx, cancel := context.WithCancel(m.baseCtx)
	conn := &connection{bot: b, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(conn.done)
		b.Start(pollCtx)
	}()
	return conn, nil
}

// quiesce cancels a connection's polling and waits, bounded, for it to
// drain the update it may be processing.
func (m *Manager) quiesce(conn *connection) {
	if conn == nil {
		return
	}
	conn.cancel()
	select {
	case <-conn.done:
	case <-time.After(quiesceTimeout):
		m.log.Warn("old telegram connection did not stop in time")
	}
}

// handleUpdate adapts raw Telegram updates onto the handler.
func (m *Manager) handleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	m.dispatch(ctx, &telegramReplier{bot: b}, update)
}

// dispatch routes one update. Panics in the handler are contained so a
// single malformed update cannot take down polling.
func (m *Manager) dispatch(ctx context.Context, r convo.Replier, update *tgmodels.Update) {
	var chatID int64
	defer func() {
		if rec := recover(); rec != nil {
			m.log.Error("panic while handling update",
				logger.ChatIDField(chatID),
				logger.StringField("panic", fmt.Sprintf("%v", rec)),
			)
			if m.metrics != nil {
				m.metrics.Errors.WithLabelValues("update_panic").Inc()
			}
			if chatID != 0 {
				if err := r.SendMessage(ctx, chatID, "Something went wrong on my side. Please try again.", nil); err != nil {
					m.log.Debug("failed to send panic apology", logger.ErrorField(err))
				}
			}
		}
	}()

	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.Text == "" {
			return
		}
		// Other bots' messages are ignored to avoid loops.
		if msg.From != nil && msg.From.IsBot {
			return
		}
		chatID = msg.Chat.ID
		m.handler.HandleMessage(ctx, r, chatID, msg.Text)

	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message.Message == nil {
			return
		}
		chatID = cb.Message.Message.Chat.ID
		m.handler.HandleCallback(ctx, r, chatID, cb.ID, cb.Data)
	}
}

// telegramReplier sends through a live bot connection.
type telegramReplier struct {
	bot *bot.Bot
}

func (t *telegramReplier) SendMessage(ctx context.Context, chatID int64, text string, markup *tgmodels.InlineKeyboardMarkup) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

func (t *telegramReplier) AnswerCallback(ctx context.Context, callbackID string) error {
	if _, err := t.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	}); err != nil {
		return fmt.Errorf("answer callback %s: %w", callbackID, err)
	}
	return nil
}
