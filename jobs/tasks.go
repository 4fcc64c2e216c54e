package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeQuoteNotification notifies the sales inbox of a new quote request.
	TaskTypeQuoteNotification = "mail:quote"
	// TaskTypeInvitationEmail sends credentials to a newly invited collaborator.
	TaskTypeInvitationEmail = "mail:invitation"
)

// Mailer delivers a transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// QuoteNotificationPayload carries the quote details for the sales inbox.
type QuoteNotificationPayload struct {
	QuoteID     string `json:"quote_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	ServiceType string `json:"service_type"`
	Vehicle     string `json:"vehicle"`
	Message     string `json:"message"`
	Inbox       string `json:"inbox"`
}

// InvitationEmailPayload carries the credentials for an invited collaborator.
type InvitationEmailPayload struct {
	Email             string `json:"email"`
	TemporaryPassword string `json:"temporary_password"`
	Role              string `json:"role"`
	LoginURL          string `json:"login_url"`
}

// NewQuoteNotificationTask constructs an Asynq task.
func NewQuoteNotificationTask(payload QuoteNotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeQuoteNotification, data), nil
}

// NewInvitationEmailTask constructs an Asynq task.
func NewInvitationEmailTask(payload InvitationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInvitationEmail, data), nil
}

// NewQuoteNotificationHandler processes TaskTypeQuoteNotification tasks.
func NewQuoteNotificationHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload QuoteNotificationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		subject := fmt.Sprintf("Nouvelle demande de devis: %s", payload.ServiceType)
		body := fmt.Sprintf(
			`<h2>Nouvelle demande de devis</h2>
<p><strong>Client:</strong> %s (%s, %s)</p>
<p><strong>Service:</strong> %s</p>
<p><strong>Véhicule:</strong> %s</p>
<p>%s</p>
<p>Référence: %s</p>`,
			html.EscapeString(payload.Name),
			html.EscapeString(payload.Email),
			html.EscapeString(payload.Phone),
			html.EscapeString(payload.ServiceType),
			html.EscapeString(payload.Vehicle),
			html.EscapeString(payload.Message),
			html.EscapeString(payload.QuoteID),
		)
		if err := mailer.Send(ctx, payload.Inbox, subject, body); err != nil {
			logger.Error("send quote notification", slog.String("quote_id", payload.QuoteID), slog.Any("error", err))
			return err
		}
		return nil
	}
}

// NewInvitationEmailHandler processes TaskTypeInvitationEmail tasks.
func NewInvitationEmailHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InvitationEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		subject := "Votre accès au tableau de bord"
		body := fmt.Sprintf(
			`<h2>Bienvenue</h2>
<p>Un compte %s vient d'être créé pour vous.</p>
<p><strong>Identifiant:</strong> %s<br><strong>Mot de passe temporaire:</strong> %s</p>
<p>Connectez-vous sur <a href="%s">%s</a> et changez ce mot de passe.</p>`,
			html.EscapeString(payload.Role),
			html.EscapeString(payload.Email),
			html.EscapeString(payload.TemporaryPassword),
			html.EscapeString(payload.LoginURL),
			html.EscapeString(payload.LoginURL),
		)
		if err := mailer.Send(ctx, payload.Email, subject, body); err != nil {
			logger.Error("send invitation email", slog.String("email", payload.Email), slog.Any("error", err))
			return err
		}
		return nil
	}
}
