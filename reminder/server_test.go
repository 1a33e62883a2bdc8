package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testLog *zap.SugaredLogger

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	testLog = l.Sugar()
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

// decodeResult unmarshals the tool's JSON text response.
func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool result should be text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &out))
	return out
}

func futureDue() string {
	return time.Now().Add(24 * time.Hour).Format("2006-01-02 15:04")
}

func TestToolAddReminder(t *testing.T) {
	s := NewServer("test", testLog)

	res, err := s.handleAdd(context.Background(), callRequest(map[string]interface{}{
		"title":        "dentist",
		"datetime_str": futureDue(),
		"description":  "bring insurance card",
	}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Reminder added successfully", out["message"])

	reminder, ok := out["reminder"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "dentist", reminder["title"])
	assert.NotEmpty(t, reminder["id"])
}

func TestToolAddReminderPastTime(t *testing.T) {
	s := NewServer("test", testLog)

	res, err := s.handleAdd(context.Background(), callRequest(map[string]interface{}{
		"title":        "too late",
		"datetime_str": "2020-01-01 00:00",
	}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "past time")
}

func TestToolAddReminderBadDatetime(t *testing.T) {
	s := NewServer("test", testLog)

	res, err := s.handleAdd(context.Background(), callRequest(map[string]interface{}{
		"title":        "x",
		"datetime_str": "whenever",
	}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "YYYY-MM-DD HH:MM")
}

func TestToolListReminders(t *testing.T) {
	s := NewServer("test", testLog)

	res, err := s.handleList(context.Background(), callRequest(nil))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "No reminders found", out["message"])

	_, err = s.handleAdd(context.Background(), callRequest(map[string]interface{}{
		"title":        "standup",
		"datetime_str": futureDue(),
	}))
	require.NoError(t, err)

	res, err = s.handleList(context.Background(), callRequest(nil))
	require.NoError(t, err)
	out = decodeResult(t, res)
	assert.Equal(t, float64(1), out["count"])
}

func TestToolCompleteAndListFiltering(t *testing.T) {
	s := NewServer("test", testLog)

	res, err := s.handleAdd(context.Background(), callRequest(map[string]interface{}{
		"title":        "standup",
		"datetime_str": futureDue(),
	}))
	require.NoError(t, err)
	added := decodeResult(t, res)["reminder"].(map[string]interface{})
	id := added["id"].(string)

	res, err = s.handleComplete(context.Background(), callRequest(map[string]interface{}{
		"reminder_id": id,
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, true, out["success"])

	// Completed reminders are hidden unless asked for.
	res, err = s.handleList(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "No reminders found", decodeResult(t, res)["message"])

	res, err = s.handleList(context.Background(), callRequest(map[string]interface{}{
		"include_completed": "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), decodeResult(t, res)["count"])
}

func TestToolCompleteNotFound(t *testing.T) {
	s := NewServer("test", testLog)

	res, err := s.handleComplete(context.Background(), callRequest(map[string]interface{}{
		"reminder_id": "no-such-id",
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "not found")
}

func TestToolDeleteReminder(t *testing.T) {
	s := NewServer("test", testLog)

	res, err := s.handleAdd(context.Background(), callRequest(map[string]interface{}{
		"title":        "groceries",
		"datetime_str": futureDue(),
	}))
	require.NoError(t, err)
	added := decodeResult(t, res)["reminder"].(map[string]interface{})
	id := added["id"].(string)

	res, err = s.handleDelete(context.Background(), callRequest(map[string]interface{}{
		"reminder_id": id,
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Reminder deleted successfully", out["message"])

	res, err = s.handleDelete(context.Background(), callRequest(map[string]interface{}{
		"reminder_id": id,
	}))
	require.NoError(t, err)
	assert.Equal(t, false, decodeResult(t, res)["success"])
}

func TestToolSearchReminders(t *testing.T) {
	s := NewServer("test", testLog)

	for i, title := range []string{"Dentist appointment", "standup", "buy groceries"} {
		_, err := s.handleAdd(context.Background(), callRequest(map[string]interface{}{
			"title":        title,
			"datetime_str": time.Now().Add(time.Duration(i+1) * time.Hour).Format("2006-01-02 15:04"),
		}))
		require.NoError(t, err)
	}

	res, err := s.handleSearch(context.Background(), callRequest(map[string]interface{}{
		"query": "dentist",
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, float64(1), out["count"])

	res, err = s.handleSearch(context.Background(), callRequest(map[string]interface{}{
		"query": "zzz",
	}))
	require.NoError(t, err)
	out = decodeResult(t, res)
	assert.Equal(t, true, out["success"])
	assert.Contains(t, out["message"], "No reminders found")
}

func TestToolUpcomingHoursValidation(t *testing.T) {
	s := NewServer("test", testLog)

	res, err := s.handleUpcoming(context.Background(), callRequest(map[string]interface{}{
		"hours": "not-a-number",
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "valid number")
}

func TestToolOverdueEmpty(t *testing.T) {
	s := NewServer("test", testLog)

	res, err := s.handleOverdue(context.Background(), callRequest(nil))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "No overdue reminders", out["message"])
}

func TestToolStats(t *testing.T) {
	s := NewServer("test", testLog)

	for i := 0; i < 3; i++ {
		_, err := s.handleAdd(context.Background(), callRequest(map[string]interface{}{
			"title":        fmt.Sprintf("r%d", i),
			"datetime_str": futureDue(),
		}))
		require.NoError(t, err)
	}

	res, err := s.handleStats(context.Background(), callRequest(nil))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, true, out["success"])

	stats, ok := out["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), stats["total"])
	assert.Equal(t, float64(3), stats["pending"])
}
