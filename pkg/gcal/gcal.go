// Package gcal manages events on the trainers' private Google Calendar.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Event is the subset of a calendar event the workshops use.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// Client writes events to one calendar.
type Client struct {
	events      *calendar.EventsService
	calendarID  string
	timeZone    string
	sendUpdates bool
}

// New builds a client. sendUpdates controls whether attendees are notified.
func New(ctx context.Context, credentialsFile, calendarID, timeZone string, sendUpdates bool, opts ...option.ClientOption) (*Client, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("calendar id is required")
	}
	if credentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)
	}
	opts = append(opts, option.WithScopes(calendar.CalendarEventsScope))

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Client{events: svc.Events, calendarID: calendarID, timeZone: timeZone, sendUpdates: sendUpdates}, nil
}

// Insert creates the event and returns its id.
func (c *Client) Insert(ctx context.Context, ev Event) (string, error) {
	created, err := c.events.Insert(c.calendarID, c.toAPI(ev)).SendUpdates(c.updatesMode()).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event %q: %w", ev.Summary, err)
	}
	return created.Id, nil
}

// Update replaces an existing event.
func (c *Client) Update(ctx context.Context, eventID string, ev Event) error {
	if _, err := c.events.Update(c.calendarID, eventID, c.toAPI(ev)).SendUpdates(c.updatesMode()).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	return nil
}

// Delete removes the event. An event that is already gone is not an error.
func (c *Client) Delete(ctx context.Context, eventID string) error {
	err := c.events.Delete(c.calendarID, eventID).SendUpdates(c.updatesMode()).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

func (c *Client) updatesMode() string {
	if c.sendUpdates {
		return "all"
	}
	return "none"
}

func (c *Client) toAPI(ev Event) *calendar.Event {
	attendees := make([]*calendar.EventAttendee, 0, len(ev.Attendees))
	for _, email := range ev.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}
	return &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: c.timeZone},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: c.timeZone},
		Attendees:   attendees,
	}
}
