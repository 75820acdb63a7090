// Package lifecycle implements the subscription state machine: payment
// intake, admin decisions, and the periodic expiry sweep.
package lifecycle

import (
	"context"
	"errors"
	"regexp"
	"time"

	errs "subscription-bot/internal/common/errors"
	"subscription-bot/internal/common/logger"
	"subscription-bot/internal/common/metrics"
	"subscription-bot/internal/store"
)

// RejectMode controls what a reject decision does to the stored row.
type RejectMode string

const (
	// RejectKeepPending leaves the row pending so the user can resubmit.
	RejectKeepPending RejectMode = "keep-pending"
	// RejectMark moves a pending row to a terminal rejected status. The
	// transaction reference stays claimed either way.
	RejectMark RejectMode = "rejected"
)

// Notifier is the outbound messaging capability the engine depends on.
type Notifier interface {
	SendUser(ctx context.Context, userID int64, text string) error
	SendApprovalRequest(ctx context.Context, userID int64, text string) error
	SendInvite(ctx context.Context, userID int64, text, inviteURL string) error
}

// ChannelGate is the channel-membership capability the engine depends on.
type ChannelGate interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
	CreateInviteLink(ctx context.Context) (string, error)
	Kick(ctx context.Context, userID int64) error
}

// Config holds the lifecycle policy.
type Config struct {
	MembershipDays    int
	FirstReminderDays int
	FinalReminderDays int
	RejectMode        RejectMode
}

// Engine is the sole consumer of the Store.
type Engine struct {
	store    store.Store
	notifier Notifier
	gate     ChannelGate
	cfg      Config
	logger   logger.Logger
}

func NewEngine(st store.Store, notifier Notifier, gate ChannelGate, cfg Config, log logger.Logger) *Engine {
	if cfg.MembershipDays == 0 {
		cfg.MembershipDays = 30
	}
	if cfg.FirstReminderDays == 0 {
		cfg.FirstReminderDays = 2
	}
	if cfg.FinalReminderDays == 0 {
		cfg.FinalReminderDays = 1
	}
	if cfg.RejectMode == "" {
		cfg.RejectMode = RejectKeepPending
	}
	return &Engine{
		store:    st,
		notifier: notifier,
		gate:     gate,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "lifecycle"}),
	}
}

// Submission is a payment proof sent by a user in a private chat.
type Submission struct {
	UserID      int64
	DisplayName string
	Handle      string
	Text        string
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	// 9 digits is the mobile-wallet short form, 20 the bank-transfer long form.
	refPattern = regexp.MustCompile(`^(\d{9}|\d{20})$`)
)

// SubmitPayment validates and records a payment proof, notifies the
// submitter, and posts an approve/reject request to the admin group.
func (e *Engine) SubmitPayment(ctx context.Context, sub Submission, now time.Time) error {
	log := e.logger.WithFields(map[string]interface{}{"userId": sub.UserID})

	ref := whitespacePattern.ReplaceAllString(sub.Text, "")
	if !refPattern.MatchString(ref) {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		e.sendUser(ctx, sub.UserID, msgInvalidRef, log)
		return errs.NewValidationError("transaction reference must be exactly 9 or 20 digits")
	}

	// Informational only: a user renewing before lapse gets a notice, but
	// the submission proceeds through the same path.
	if existing, err := e.store.GetByUser(ctx, sub.UserID); err == nil {
		if existing.Status == store.StatusActive && existing.ExpireAt != nil && existing.ExpireAt.After(now) {
			e.sendUser(ctx, sub.UserID, msgRenewalNotice, log)
		}
	} else if !errors.Is(err, errs.ErrNotFound) {
		log.Warn("pre-submit lookup failed", map[string]interface{}{"error": err.Error()})
	}

	if err := e.store.UpsertPending(ctx, sub.UserID, sub.DisplayName, sub.Handle, ref, now); err != nil {
		if errors.Is(err, errs.ErrDuplicateTransaction) {
			metrics.SubmissionsTotal.WithLabelValues("duplicate").Inc()
			e.sendUser(ctx, sub.UserID, msgDuplicateRef, log)
			return err
		}
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		log.Error("payment upsert failed", map[string]interface{}{"error": err.Error()})
		e.sendUser(ctx, sub.UserID, msgGenericFailure, log)
		return err
	}

	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	e.sendUser(ctx, sub.UserID, msgReceipt, log)

	if err := e.notifier.SendApprovalRequest(ctx, sub.UserID, msgApprovalRequest(sub.DisplayName, sub.UserID, ref)); err != nil {
		log.Error("admin notification failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("payment submitted", map[string]interface{}{"transactionRef": ref})
	return nil
}

// DecisionResult tells the transport how to acknowledge the admin UI.
type DecisionResult struct {
	Ack      string
	Renewed  bool
	ExpireAt time.Time
}

// Decide applies an admin approve/reject action.
func (e *Engine) Decide(ctx context.Context, action Action, now time.Time) (*DecisionResult, error) {
	log := e.logger.WithFields(map[string]interface{}{
		"userId": action.UserID,
		"action": string(action.Kind),
	})

	switch action.Kind {
	case ActionReject:
		return e.reject(ctx, action.UserID, log)
	case ActionApprove:
		return e.approve(ctx, action.UserID, now, log)
	default:
		return nil, errs.NewValidationError("unknown action kind")
	}
}

func (e *Engine) reject(ctx context.Context, userID int64, log logger.Logger) (*DecisionResult, error) {
	if e.cfg.RejectMode == RejectMark {
		if err := e.store.MarkRejected(ctx, userID); err != nil {
			log.Error("reject update failed", map[string]interface{}{"error": err.Error()})
			return nil, err
		}
	}

	metrics.DecisionsTotal.WithLabelValues("reject").Inc()
	e.sendUser(ctx, userID, msgRejected, log)
	log.Info("payment rejected", nil)
	return &DecisionResult{Ack: "❌ Rejected"}, nil
}

func (e *Engine) approve(ctx context.Context, userID int64, now time.Time, log logger.Logger) (*DecisionResult, error) {
	existing, err := e.store.GetByUser(ctx, userID)
	if err != nil {
		log.Error("approve lookup failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	// Renewal before lapse extends the existing window; a first activation
	// or a lapsed window starts fresh from now.
	duration := time.Duration(e.cfg.MembershipDays) * 24 * time.Hour
	newExpire := now.Add(duration)
	renewing := existing.ExpireAt != nil && existing.ExpireAt.After(now)
	if renewing {
		newExpire = existing.ExpireAt.Add(duration)
	}

	if err := e.store.Activate(ctx, userID, now, newExpire); err != nil {
		log.Error("activation failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	metrics.DecisionsTotal.WithLabelValues("approve").Inc()

	// Membership lookup fails open toward re-inviting.
	member, err := e.gate.IsMember(ctx, userID)
	if err != nil {
		log.Warn("membership lookup failed, assuming not a member", map[string]interface{}{"error": err.Error()})
		member = false
	}

	if member {
		e.sendUser(ctx, userID, msgRenewed(newExpire), log)
	} else {
		invite, err := e.gate.CreateInviteLink(ctx)
		if err != nil {
			log.Error("invite link creation failed", map[string]interface{}{"error": err.Error()})
			e.sendUser(ctx, userID, msgApproved(newExpire), log)
		} else if err := e.notifier.SendInvite(ctx, userID, msgApproved(newExpire), invite); err != nil {
			log.Error("invite delivery failed", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("payment approved", map[string]interface{}{
		"expireAt": newExpire,
		"renewed":  member,
	})
	return &DecisionResult{Ack: "✅ Approved ✔", Renewed: member, ExpireAt: newExpire}, nil
}

// Status returns the /mysub reply for a user.
func (e *Engine) Status(ctx context.Context, userID int64, now time.Time) (string, error) {
	sub, err := e.store.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return msgNoActiveSub, nil
		}
		return "", err
	}

	if sub.Status != store.StatusActive || sub.ExpireAt == nil {
		return msgNoActiveSub, nil
	}

	remaining := int(sub.ExpireAt.Sub(now).Hours() / 24)
	if remaining < 0 {
		remaining = 0
	}
	return msgStatus(*sub.ExpireAt, remaining), nil
}

// sendUser delivers a notification and logs failures; messaging errors are
// never fatal to the enclosing operation.
func (e *Engine) sendUser(ctx context.Context, userID int64, text string, log logger.Logger) {
	if err := e.notifier.SendUser(ctx, userID, text); err != nil {
		log.Error("user notification failed", map[string]interface{}{"error": err.Error()})
	}
}
