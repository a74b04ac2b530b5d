package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(context.Background(), "", "team@group.calendar.google.com", "America/Montreal", false,
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func TestClientInsert(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "none", r.URL.Query().Get("sendUpdates"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-1"}`))
	})

	loc, _ := time.LoadLocation("America/Montreal")
	id, err := client.Insert(context.Background(), Event{
		Summary:   "PY101 - Python",
		Start:     time.Date(2024, 3, 5, 8, 30, 0, 0, loc),
		End:       time.Date(2024, 3, 5, 12, 0, 0, 0, loc),
		Attendees: []string{"jeanne@example.org"},
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", id)
	assert.Equal(t, "PY101 - Python", body["summary"])
	start := body["start"].(map[string]interface{})
	assert.Equal(t, "2024-03-05T08:30:00-05:00", start["dateTime"])
}

func TestClientDeleteIgnoresGone(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Resource has been deleted"}}`))
	})
	require.NoError(t, client.Delete(context.Background(), "evt-1"))
}
