package slack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSlack struct {
	mu     sync.Mutex
	calls  []string
	forms  map[string]map[string]string
	routes map[string]string
}

func newFakeSlack(t *testing.T, routes map[string]string) (*fakeSlack, *Client) {
	t.Helper()
	fake := &fakeSlack{routes: routes, forms: map[string]map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		method := r.URL.Path[1:]
		fake.mu.Lock()
		fake.calls = append(fake.calls, method)
		form := map[string]string{}
		for k := range r.Form {
			form[k] = r.Form.Get(k)
		}
		fake.forms[method] = form
		fake.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		body, ok := routes[method]
		if !ok {
			body = `{"ok":false,"error":"unknown_method"}`
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return fake, New("xoxb-test", srv.URL+"/")
}

func TestCreateChannelReusesTakenName(t *testing.T) {
	fake, client := newFakeSlack(t, map[string]string{
		"conversations.create": `{"ok":false,"error":"name_taken"}`,
		"conversations.list":   `{"ok":true,"channels":[{"id":"C1","name":"other"},{"id":"C2","name":"2024-03-05-py101-en"}],"response_metadata":{"next_cursor":""}}`,
	})

	id, err := client.CreateChannel(context.Background(), "2024-03-05-PY101-EN")
	require.NoError(t, err)
	assert.Equal(t, "C2", id)
	assert.Equal(t, "2024-03-05-py101-en", fake.forms["conversations.create"]["name"])
}

func TestUserIDByEmailUnknown(t *testing.T) {
	_, client := newFakeSlack(t, map[string]string{
		"users.lookupByEmail": `{"ok":false,"error":"users_not_found"}`,
	})
	id, err := client.UserIDByEmail(context.Background(), "ghost@example.org")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSetBookmarksAddsAndEdits(t *testing.T) {
	fake, client := newFakeSlack(t, map[string]string{
		"bookmarks.list": `{"ok":true,"bookmarks":[{"id":"Bk1","title":"Survey","link":"https://old"},{"id":"Bk2","title":"Zoom","link":"https://zoom"}]}`,
		"bookmarks.edit": `{"ok":true,"bookmark":{"id":"Bk1"}}`,
		"bookmarks.add":  `{"ok":true,"bookmark":{"id":"Bk3"}}`,
	})

	err := client.SetBookmarks(context.Background(), "C1", []Bookmark{
		{Title: "Survey", Link: "https://new"},
		{Title: "Zoom", Link: "https://zoom"},
		{Title: "Magic Castle", Link: "https://py101.calculquebec.cloud"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bookmarks.list", "bookmarks.edit", "bookmarks.add"}, fake.calls)
	assert.Equal(t, "https://new", fake.forms["bookmarks.edit"]["link"])
	assert.Equal(t, "Magic Castle", fake.forms["bookmarks.add"]["title"])
}

func TestArchiveTwice(t *testing.T) {
	_, client := newFakeSlack(t, map[string]string{
		"conversations.archive": `{"ok":false,"error":"already_archived"}`,
	})
	require.NoError(t, client.Archive(context.Background(), "C1"))
}
