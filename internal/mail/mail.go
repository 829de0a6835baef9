package mail

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrNoRecipient is returned when a message has no destination address
var ErrNoRecipient = errors.New("mail: no recipient address")

// Discard is a notifier that only logs. It stands in when mail is disabled.
type Discard struct{}

// Send logs the message and drops it
func (Discard) Send(ctx context.Context, to, subject, body string) error {
	log.Debug().Str("to", to).Str("subject", subject).Msg("Mail disabled, dropping message")
	return nil
}
