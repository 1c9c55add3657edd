package worker

// email_worker.go
// Processes jobs from QueueEmail. Delivery goes through the circuit breaker
// so a downed SMTP relay fails fast instead of stalling every worker.

import (
	"context"
	"encoding/json"
	"fmt"

	"stockledger/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail     string             `json:"to_email"`
	Subject     string             `json:"subject"`
	Body        string             `json:"body"`
	Attachments []infra.Attachment `json:"attachments,omitempty"`
}

// MailSender is satisfied by *infra.Mailer.
type MailSender interface {
	Send(to, subject, body string, attachments ...infra.Attachment) error
}

type EmailWorker struct {
	mailer MailSender
	cb     *infra.CircuitBreaker
}

func NewEmailWorker(mailer MailSender, cb *infra.CircuitBreaker) *EmailWorker {
	return &EmailWorker{mailer: mailer, cb: cb}
}

// Process sends one email. Malformed payloads are permanent failures.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", ErrPermanent)
	}
	if payload.ToEmail == "" {
		return fmt.Errorf("email_worker: empty to_email: %w", ErrPermanent)
	}

	err := w.cb.Execute(func() error {
		return w.mailer.Send(payload.ToEmail, payload.Subject, payload.Body, payload.Attachments...)
	})
	if err != nil {
		log.Warn().Err(err).Str("to", payload.ToEmail).Str("breaker", w.cb.State().String()).Msg("email_worker: send failed")
		return err
	}
	log.Info().Str("to", payload.ToEmail).Str("subject", payload.Subject).Msg("email_worker: sent")
	return nil
}
