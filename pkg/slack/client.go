// Package slack wraps the Slack Web API calls used to run workshop channels.
package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	slackgo "github.com/slack-go/slack"
)

// Bookmark is a link pinned to a channel header.
type Bookmark struct {
	Title string
	Link  string
}

// Client is a bot-token Slack client.
type Client struct {
	api *slackgo.Client
}

// New creates a client. apiURL overrides the Web API endpoint when set and
// must end with a slash.
func New(botToken, apiURL string) *Client {
	var opts []slackgo.Option
	if apiURL != "" {
		opts = append(opts, slackgo.OptionAPIURL(apiURL))
	}
	return &Client{api: slackgo.New(botToken, opts...)}
}

func isSlackError(err error, code string) bool {
	var resp slackgo.SlackErrorResponse
	return errors.As(err, &resp) && resp.Err == code
}

// CreateChannel creates a public channel and returns its id. An existing
// channel with the same name is reused.
func (c *Client) CreateChannel(ctx context.Context, name string) (string, error) {
	name = strings.ToLower(name)
	ch, err := c.api.CreateConversationContext(ctx, slackgo.CreateConversationParams{ChannelName: name})
	if err == nil {
		return ch.ID, nil
	}
	if !isSlackError(err, "name_taken") {
		return "", fmt.Errorf("slack: create channel %s: %w", name, err)
	}
	id, err := c.FindChannel(ctx, name)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("slack: channel %s is taken but not visible to the bot", name)
	}
	return id, nil
}

// FindChannel returns the id of the named channel, or "" when none exists.
func (c *Client) FindChannel(ctx context.Context, name string) (string, error) {
	params := &slackgo.GetConversationsParameters{Limit: 200, Types: []string{"public_channel", "private_channel"}}
	for {
		channels, cursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return "", fmt.Errorf("slack: list channels: %w", err)
		}
		for _, ch := range channels {
			if ch.Name == name {
				return ch.ID, nil
			}
		}
		if cursor == "" {
			return "", nil
		}
		params.Cursor = cursor
	}
}

// UserIDByEmail resolves a workspace member. Unknown emails return "".
func (c *Client) UserIDByEmail(ctx context.Context, email string) (string, error) {
	user, err := c.api.GetUserByEmailContext(ctx, email)
	if isSlackError(err, "users_not_found") {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("slack: lookup %s: %w", email, err)
	}
	return user.ID, nil
}

// Invite adds users to the channel. Members already present are not an error.
func (c *Client) Invite(ctx context.Context, channelID string, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := c.api.InviteUsersToConversationContext(ctx, channelID, userIDs...)
	if err != nil && !isSlackError(err, "already_in_channel") {
		return fmt.Errorf("slack: invite to %s: %w", channelID, err)
	}
	return nil
}

// SetBookmarks adds each bookmark, updating the link of one that already
// carries the same title.
func (c *Client) SetBookmarks(ctx context.Context, channelID string, bookmarks []Bookmark) error {
	existing, err := c.api.ListBookmarksContext(ctx, channelID)
	if err != nil {
		return fmt.Errorf("slack: list bookmarks: %w", err)
	}
	byTitle := make(map[string]slackgo.Bookmark, len(existing))
	for _, b := range existing {
		byTitle[b.Title] = b
	}

	for _, b := range bookmarks {
		if cur, ok := byTitle[b.Title]; ok {
			if cur.Link == b.Link {
				continue
			}
			if _, err := c.api.EditBookmarkContext(ctx, channelID, cur.ID, slackgo.EditBookmarkParameters{Link: b.Link}); err != nil {
				return fmt.Errorf("slack: edit bookmark %q: %w", b.Title, err)
			}
			continue
		}
		if _, err := c.api.AddBookmarkContext(ctx, channelID, slackgo.AddBookmarkParameters{Title: b.Title, Type: "link", Link: b.Link}); err != nil {
			return fmt.Errorf("slack: add bookmark %q: %w", b.Title, err)
		}
	}
	return nil
}

// Archive archives the channel. Archiving twice is not an error.
func (c *Client) Archive(ctx context.Context, channelID string) error {
	err := c.api.ArchiveConversationContext(ctx, channelID)
	if err != nil && !isSlackError(err, "already_archived") {
		return fmt.Errorf("slack: archive %s: %w", channelID, err)
	}
	return nil
}
