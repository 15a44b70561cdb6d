package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrdered(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, "001_messaging", ms[0].ID)
	for i := 1; i < len(ms); i++ {
		assert.Less(t, ms[i-1].ID, ms[i].ID)
	}
}

func TestPreviewTriggerFallsBackToAttachmentType(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	sql := ms[0].SQL

	assert.Contains(t, sql, "NULLIF(NEW.body, '')")
	assert.Contains(t, sql, "'[' || (NEW.attachments->0->>'type') || ']'")
	assert.NotContains(t, sql, "last_message_preview = left(NEW.body, 100)")
}

func TestMessagesIndexCoversKeysetCursor(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	assert.True(t, strings.Contains(ms[0].SQL, "(conversation_id, created_at DESC, id DESC)"))
}
