package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvite_EffectiveStatus(t *testing.T) {
	now := time.Now()

	pending := &Invite{Status: InvitePending, ExpiresAt: now.Add(time.Hour)}
	assert.Equal(t, InvitePending, pending.EffectiveStatus(now))

	stale := &Invite{Status: InvitePending, ExpiresAt: now.Add(-time.Second)}
	assert.Equal(t, InviteExpired, stale.EffectiveStatus(now))

	accepted := &Invite{Status: InviteAccepted, ExpiresAt: now.Add(-time.Hour)}
	assert.Equal(t, InviteAccepted, accepted.EffectiveStatus(now))
}

func TestProject_IsToolActive(t *testing.T) {
	open := &Project{}
	assert.True(t, open.IsToolActive("mood_boards"))

	limited := &Project{ActiveTools: []string{"decisions"}}
	assert.True(t, limited.IsToolActive("decisions"))
	assert.False(t, limited.IsToolActive("mood_boards"))
}

func TestValidToolKey(t *testing.T) {
	assert.True(t, ValidToolKey("mood_boards"))
	assert.True(t, ValidToolKey("decisions2"))
	assert.False(t, ValidToolKey("Mood"))
	assert.False(t, ValidToolKey("m"))
	assert.False(t, ValidToolKey("1tool"))
	assert.False(t, ValidToolKey("mood-boards"))
}

func TestToolDisplayName(t *testing.T) {
	assert.Equal(t, "Mood Boards", ToolDisplayName("mood_boards"))
	assert.Equal(t, "Decisions", ToolDisplayName("decisions"))
}

func TestQuotaUsage(t *testing.T) {
	q := QuotaUsage{EditUsed: 2, EditPending: 1, EditLimit: 3}
	assert.Equal(t, 3, q.Total())
	assert.Equal(t, 0, q.Remaining())

	q.EditPending = 0
	assert.Equal(t, 1, q.Remaining())
}

func TestAccessLevel_Valid(t *testing.T) {
	assert.True(t, LevelView.Valid())
	assert.True(t, LevelEdit.Valid())
	assert.False(t, AccessLevel("admin").Valid())
}
