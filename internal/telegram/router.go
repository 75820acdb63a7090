// internal/telegram/router.go
package telegram

import (
	"context"
	"strings"
	"time"

	"subscription-bot/internal/common/logger"
	"subscription-bot/internal/lifecycle"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
)

const welcomeText = "👋 Welcome!\n\n" +
	"💰 Channel fee — 1000 MMK (30 days)\n" +
	"📲 KPay / Wave\n" +
	"09971249026 (wyh)\n\n" +
	"💳 After paying, send the transaction ID:\n" +
	"Wave — 9 digits\n" +
	"KPay — 20 digits"

// Router consumes the long-poll update stream and dispatches to the engine.
type Router struct {
	client *Client
	engine *lifecycle.Engine
	guard  *callbackGuard
	logger logger.Logger

	pollTimeout int
}

func NewRouter(client *Client, engine *lifecycle.Engine, rdb *redis.Client, guardTTL time.Duration, pollTimeout int, log logger.Logger) *Router {
	routerLog := log.WithFields(map[string]interface{}{"component": "router"})
	return &Router{
		client:      client,
		engine:      engine,
		guard:       newCallbackGuard(rdb, guardTTL, routerLog),
		logger:      routerLog,
		pollTimeout: pollTimeout,
	}
}

// Run blocks consuming updates until the context is cancelled.
func (r *Router) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = r.pollTimeout
	updates := r.client.api.GetUpdatesChan(u)

	r.logger.Info("update loop started", nil)
	for {
		select {
		case <-ctx.Done():
			r.client.api.StopReceivingUpdates()
			r.logger.Info("update loop stopped", nil)
			return
		case update, ok := <-updates:
			if !ok {
				r.logger.Info("update channel closed", nil)
				return
			}
			r.dispatch(ctx, update)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, update tgbotapi.Update) {
	now := time.Now().UTC()

	switch {
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, update.CallbackQuery, now)
	case update.Message != nil:
		r.handleMessage(ctx, update.Message, now)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message, now time.Time) {
	// All user-facing commands and payment intake happen in private chats;
	// group chatter is ignored.
	if !msg.Chat.IsPrivate() || msg.From == nil {
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			if err := r.client.SendUser(ctx, msg.Chat.ID, welcomeText); err != nil {
				r.logger.Error("welcome delivery failed", map[string]interface{}{"error": err.Error()})
			}
		case "mysub":
			reply, err := r.engine.Status(ctx, msg.From.ID, now)
			if err != nil {
				r.logger.Error("status lookup failed", map[string]interface{}{
					"userId": msg.From.ID,
					"error":  err.Error(),
				})
				return
			}
			if err := r.client.SendUser(ctx, msg.Chat.ID, reply); err != nil {
				r.logger.Error("status delivery failed", map[string]interface{}{"error": err.Error()})
			}
		}
		return
	}

	if msg.Text == "" {
		return
	}

	sub := lifecycle.Submission{
		UserID:      msg.From.ID,
		DisplayName: displayName(msg.From),
		Handle:      msg.From.UserName,
		Text:        msg.Text,
	}
	if err := r.engine.SubmitPayment(ctx, sub, now); err != nil {
		// User-correctable outcomes were already messaged by the engine.
		r.logger.Debug("submission rejected", map[string]interface{}{
			"userId": msg.From.ID,
			"error":  err.Error(),
		})
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, now time.Time) {
	r.client.answerCallback(cb.ID)

	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	action, err := lifecycle.ParseAction(cb.Data)
	if err != nil {
		r.logger.Warn("unparseable callback", map[string]interface{}{
			"data":  cb.Data,
			"error": err.Error(),
		})
		return
	}

	if !r.guard.tryAcquire(ctx, chatID, messageID, cb.Data) {
		r.logger.Debug("duplicate callback suppressed", map[string]interface{}{"data": cb.Data})
		return
	}

	result, err := r.engine.Decide(ctx, action, now)
	if err != nil {
		r.logger.Error("decision failed", map[string]interface{}{
			"userId": action.UserID,
			"action": string(action.Kind),
			"error":  err.Error(),
		})
		r.client.editMessage(chatID, messageID, "⚠ Decision failed, see logs.")
		return
	}

	r.client.editMessage(chatID, messageID, result.Ack)
}

func displayName(u *tgbotapi.User) string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}
