package services

import (
	"context"

	"github.com/dimitrije/toolshare/internal/outbox"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/google/uuid"
)

// EventPublisher fans sharing events out to live subscribers.
type EventPublisher interface {
	Publish(projectID uuid.UUID, eventType string, data any)
	PublishRevocation(projectID, userID uuid.UUID, eventType string, data any)
}

// RegisterEffects binds every outbox effect kind to its handler.
func RegisterEffects(reg *outbox.Registry, allowlist *AllowlistService, email *EmailService, events EventPublisher) {
	reg.Handle(outbox.KindAllowlistAdd, func(ctx context.Context, e outbox.Effect) error {
		var entry outbox.AllowlistEntry
		if err := e.Decode(&entry); err != nil {
			return err
		}
		return allowlist.Add(ctx, entry.Email, entry.Source)
	})

	reg.Handle(outbox.KindInviteNotify, func(ctx context.Context, e outbox.Effect) error {
		var n outbox.InviteNotification
		if err := e.Decode(&n); err != nil {
			return err
		}
		if !email.IsConfigured() {
			logger.Debug().Str("invite_id", n.InviteID.String()).Msg("smtp not configured, skipping invite email")
			return nil
		}
		return email.SendToolInvite(n)
	})

	reg.Handle(outbox.KindSharingEvent, func(ctx context.Context, e outbox.Effect) error {
		var ev outbox.SharingEvent
		if err := e.Decode(&ev); err != nil {
			return err
		}
		if ev.Type == outbox.EventAccessRevoked && ev.UserID != nil {
			events.PublishRevocation(ev.ProjectID, *ev.UserID, ev.Type, ev)
			return nil
		}
		events.Publish(ev.ProjectID, ev.Type, ev)
		return nil
	})
}
