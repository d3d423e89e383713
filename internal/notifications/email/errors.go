package email

import (
	"errors"

	"plotwatch/internal/types"
)

// ErrRecipientBlocked indicates the provider refused the recipient, for
// example because it is on a suppression list.
var ErrRecipientBlocked = errors.New("recipient blocked by provider")

// IsBlocklistError checks both the sentinel and the ErrCodeEmailBlocked
// AppError code returned by provider clients.
func IsBlocklistError(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) {
		return true
	}
	return types.IsCode(err, types.ErrCodeEmailBlocked)
}
