// internal/lifecycle/action.go
package lifecycle

import (
	"fmt"
	"strconv"
	"strings"

	errs "subscription-bot/internal/common/errors"
)

// ActionKind is the admin decision variant.
type ActionKind string

const (
	ActionApprove ActionKind = "approve"
	ActionReject  ActionKind = "reject"
)

// Action is an admin decision parsed once at the transport boundary. Business
// logic never sees the delimited callback string.
type Action struct {
	Kind   ActionKind
	UserID int64
}

// ParseAction decodes callback payloads of the form "approve_<id>" or
// "reject_<id>".
func ParseAction(data string) (Action, error) {
	kind, id, ok := strings.Cut(data, "_")
	if !ok {
		return Action{}, errs.NewValidationError(fmt.Sprintf("malformed callback data: %q", data))
	}

	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return Action{}, errs.NewValidationError(fmt.Sprintf("malformed callback user id: %q", data))
	}

	switch ActionKind(kind) {
	case ActionApprove, ActionReject:
		return Action{Kind: ActionKind(kind), UserID: userID}, nil
	default:
		return Action{}, errs.NewValidationError(fmt.Sprintf("unknown callback action: %q", kind))
	}
}

// CallbackData encodes the action back into the wire form used on the admin
// inline buttons.
func (a Action) CallbackData() string {
	return fmt.Sprintf("%s_%d", a.Kind, a.UserID)
}
