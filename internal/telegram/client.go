// Package telegram hosts the bot transport: the API client, the callback
// guard, and the update router.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"

	"subscription-bot/internal/common/config"
	errs "subscription-bot/internal/common/errors"
	"subscription-bot/internal/common/logger"
	"subscription-bot/internal/lifecycle"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client wraps the Telegram Bot API and implements the engine's Notifier and
// ChannelGate capabilities. The underlying library does not take a context;
// the ctx parameters exist for interface symmetry and cancellation checks.
type Client struct {
	api          *tgbotapi.BotAPI
	adminGroupID int64
	channelID    int64
	logger       logger.Logger
}

func NewClient(cfg config.TelegramConfig, log logger.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	c := &Client{
		api:          api,
		adminGroupID: cfg.AdminGroupID,
		channelID:    cfg.ChannelID,
		logger:       log.WithFields(map[string]interface{}{"component": "telegram"}),
	}
	c.logger.Info("telegram bot authorized", map[string]interface{}{
		"username": api.Self.UserName,
	})
	return c, nil
}

// --- Notifier ---

func (c *Client) SendUser(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return errs.NewExternalServiceError("telegram", err)
	}
	return nil
}

func (c *Client) SendApprovalRequest(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	approve := lifecycle.Action{Kind: lifecycle.ActionApprove, UserID: userID}
	reject := lifecycle.Action{Kind: lifecycle.ActionReject, UserID: userID}

	msg := tgbotapi.NewMessage(c.adminGroupID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", approve.CallbackData()),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", reject.CallbackData()),
		),
	)
	if _, err := c.api.Send(msg); err != nil {
		return errs.NewExternalServiceError("telegram", err)
	}
	return nil
}

func (c *Client) SendInvite(ctx context.Context, userID int64, text, inviteURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🔓 Join Channel", inviteURL),
		),
	)
	if _, err := c.api.Send(msg); err != nil {
		return errs.NewExternalServiceError("telegram", err)
	}
	return nil
}

// --- ChannelGate ---

func (c *Client) IsMember(ctx context.Context, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: c.channelID,
			UserID: userID,
		},
	})
	if err != nil {
		// Fail open toward re-inviting.
		c.logger.Warn("membership lookup failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return false, nil
	}

	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	}
	return false, nil
}

func (c *Client) CreateInviteLink(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := c.api.Request(tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: c.channelID},
		MemberLimit: 1,
	})
	if err != nil {
		return "", errs.NewExternalServiceError("telegram", err)
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", errs.NewExternalServiceError("telegram", err)
	}
	return link.InviteLink, nil
}

// Kick bans then immediately unbans, removing the member without a permanent
// block so a future invite link still works.
func (c *Client) Kick(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	member := tgbotapi.ChatMemberConfig{ChatID: c.channelID, UserID: userID}
	if _, err := c.api.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return errs.NewExternalServiceError("telegram", err)
	}
	if _, err := c.api.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return errs.NewExternalServiceError("telegram", err)
	}
	return nil
}

// --- Admin UI acknowledgement ---

func (c *Client) answerCallback(callbackID string) {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		c.logger.Warn("callback answer failed", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Client) editMessage(chatID int64, messageID int, text string) {
	if _, err := c.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		c.logger.Warn("admin message edit failed", map[string]interface{}{"error": err.Error()})
	}
}
