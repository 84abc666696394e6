package services

import (
	"context"
	"sync"
	"testing"

	"github.com/dimitrije/toolshare/internal/config"
	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/outbox"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	projectID uuid.UUID
	userID    uuid.UUID
	eventType string
	dropped   bool
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(projectID uuid.UUID, eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{projectID: projectID, eventType: eventType})
}

func (p *fakePublisher) PublishRevocation(projectID, userID uuid.UUID, eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{projectID: projectID, userID: userID, eventType: eventType, dropped: true})
}

func newEffectsRegistry(t *testing.T, smtp config.SMTPConfig) (*outbox.Registry, pgxmock.PgxPoolIface, *fakePublisher, *[]sentMail) {
	t.Helper()
	db, mock := newMockDB(t)
	email, sent := capturingEmailService(smtp)
	pub := &fakePublisher{}
	reg := outbox.NewRegistry(metrics.NewNop())
	RegisterEffects(reg, NewAllowlistService(db), email, pub)
	return reg, mock, pub, sent
}

func mustEffect(t *testing.T, kind string, payload any) outbox.Effect {
	t.Helper()
	e, err := outbox.NewEffect(kind, payload)
	require.NoError(t, err)
	return e
}

func TestRegisterEffects_AllKindsBound(t *testing.T) {
	reg, _, _, _ := newEffectsRegistry(t, config.SMTPConfig{})
	assert.ElementsMatch(t, []string{outbox.KindAllowlistAdd, outbox.KindInviteNotify, outbox.KindSharingEvent}, reg.Kinds())
}

func TestRegisterEffects_AllowlistAdd(t *testing.T) {
	reg, mock, _, _ := newEffectsRegistry(t, config.SMTPConfig{})

	mock.ExpectExec(`INSERT INTO email_allowlist`).
		WithArgs("guest@example.com", "invite").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := reg.Run(context.Background(), mustEffect(t, outbox.KindAllowlistAdd, outbox.AllowlistEntry{
		InviteID: uuid.New(),
		Email:    "guest@example.com",
		Source:   "invite",
	}))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterEffects_InviteNotify(t *testing.T) {
	n := outbox.InviteNotification{
		InviteID:    uuid.New(),
		Email:       "guest@example.com",
		Token:       "tok",
		InviterName: "Olivia",
		ProjectName: "Garden",
		ToolName:    "Plant Log",
		Level:       models.LevelView,
	}

	t.Run("sends when smtp is configured", func(t *testing.T) {
		reg, _, _, sent := newEffectsRegistry(t, smtpConfig())
		require.NoError(t, reg.Run(context.Background(), mustEffect(t, outbox.KindInviteNotify, n)))
		require.Len(t, *sent, 1)
		assert.Equal(t, []string{"guest@example.com"}, (*sent)[0].to)
	})

	t.Run("skips when smtp is not configured", func(t *testing.T) {
		reg, _, _, sent := newEffectsRegistry(t, config.SMTPConfig{})
		require.NoError(t, reg.Run(context.Background(), mustEffect(t, outbox.KindInviteNotify, n)))
		assert.Empty(t, *sent)
	})
}

func TestRegisterEffects_SharingEvent(t *testing.T) {
	projectID, userID := uuid.New(), uuid.New()
	reg, _, pub, _ := newEffectsRegistry(t, config.SMTPConfig{})
	ctx := context.Background()

	require.NoError(t, reg.Run(ctx, mustEffect(t, outbox.KindSharingEvent, outbox.SharingEvent{
		Type:      outbox.EventInviteCreated,
		ProjectID: projectID,
		ToolKey:   testTool,
	})))
	require.NoError(t, reg.Run(ctx, mustEffect(t, outbox.KindSharingEvent, outbox.SharingEvent{
		Type:      outbox.EventAccessRevoked,
		ProjectID: projectID,
		ToolKey:   testTool,
		UserID:    &userID,
	})))

	require.Len(t, pub.events, 2)
	assert.Equal(t, published{projectID: projectID, eventType: outbox.EventInviteCreated}, pub.events[0])
	assert.Equal(t, published{projectID: projectID, userID: userID, eventType: outbox.EventAccessRevoked, dropped: true}, pub.events[1])
}
