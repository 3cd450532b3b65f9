package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommandLiftsIDAndGuildIDOutOfTheFlatBody(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "123",
		"guild_id": "456",
		"name": "rateme",
		"description": "rate something",
		"options": []
	}`)

	cmd, err := decodeCommand(raw)
	require.NoError(t, err)
	assert.Equal(t, "123", cmd.ID)
	assert.Equal(t, "456", cmd.GuildID)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(cmd.Body, &fields))
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "description")
	assert.Contains(t, fields, "options")
	assert.NotContains(t, fields, "id")
	assert.NotContains(t, fields, "guild_id")
}

func TestDecodeCommandToleratesMissingGuildID(t *testing.T) {
	cmd, err := decodeCommand(json.RawMessage(`{"id": "1", "name": "n", "description": "d"}`))
	require.NoError(t, err)
	assert.Equal(t, "1", cmd.ID)
	assert.Empty(t, cmd.GuildID)
}

func TestGlobalCommandsDecodesThePlatformsFlatArrayShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": "1", "name": "rateme", "description": "rate something", "options": []},
			{"id": "2", "name": "ping", "description": "pong", "options": []}
		]`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(Config{BaseURL: server.URL, Token: "t"})
	require.NoError(t, err)

	cmds, err := client.GlobalCommands(context.Background())
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "1", cmds[0].ID)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(cmds[0].Body, &fields))
	assert.Contains(t, fields, "name")
}
