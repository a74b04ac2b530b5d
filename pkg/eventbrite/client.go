// Package eventbrite is a small client for the Eventbrite v3 REST API.
package eventbrite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public v3 endpoint.
const DefaultBaseURL = "https://www.eventbriteapi.com/v3"

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode  int    `json:"status_code"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("eventbrite: %d %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("eventbrite: status %d", e.StatusCode)
}

// DateTime is the local/utc pair Eventbrite returns for start and end.
type DateTime struct {
	Timezone string `json:"timezone"`
	Local    string `json:"local"`
	UTC      string `json:"utc"`
}

// Time parses the UTC value.
func (d DateTime) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, d.UTC)
}

// Event is an Eventbrite event.
type Event struct {
	ID     string   `json:"id"`
	Name   Text     `json:"name"`
	URL    string   `json:"url"`
	Status string   `json:"status"`
	Start  DateTime `json:"start"`
	End    DateTime `json:"end"`
}

// Text is Eventbrite's multi-part text field.
type Text struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Profile holds attendee identity fields.
type Profile struct {
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Attendee is a ticket holder of an event.
type Attendee struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	CheckedIn bool    `json:"checked_in"`
	Cancelled bool    `json:"cancelled"`
	Profile   Profile `json:"profile"`
}

type pagination struct {
	HasMoreItems bool   `json:"has_more_items"`
	Continuation string `json:"continuation"`
}

// Client talks to one organization.
type Client struct {
	baseURL        string
	token          string
	organizationID string
	http           *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL points the client at another endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// New creates a client authenticated with a private token.
func New(token, organizationID string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:        DefaultBaseURL,
		token:          token,
		organizationID: organizationID,
		http:           &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetEvent fetches a single event.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	var ev Event
	if err := c.get(ctx, "/events/"+url.PathEscape(eventID)+"/", nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListEvents returns the organization's events, newest first. timeFilter is
// one of "all", "past" or "current_future".
func (c *Client) ListEvents(ctx context.Context, timeFilter string) ([]Event, error) {
	if timeFilter == "" {
		timeFilter = "current_future"
	}
	query := url.Values{"time_filter": {timeFilter}, "order_by": {"start_desc"}}
	var events []Event
	err := c.paginate(ctx, "/organizations/"+url.PathEscape(c.organizationID)+"/events/", query, func(raw json.RawMessage) (bool, string, error) {
		var page struct {
			Events     []Event    `json:"events"`
			Pagination pagination `json:"pagination"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return false, "", err
		}
		events = append(events, page.Events...)
		return page.Pagination.HasMoreItems, page.Pagination.Continuation, nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// FindEventStartingOn returns the first event whose local start date equals
// date (YYYY-MM-DD).
func (c *Client) FindEventStartingOn(ctx context.Context, date string) (*Event, error) {
	events, err := c.ListEvents(ctx, "all")
	if err != nil {
		return nil, err
	}
	for i := range events {
		if strings.HasPrefix(events[i].Start.Local, date) {
			return &events[i], nil
		}
	}
	return nil, nil
}

// Attendees returns every attendee of the event across all pages.
func (c *Client) Attendees(ctx context.Context, eventID string) ([]Attendee, error) {
	var attendees []Attendee
	err := c.paginate(ctx, "/events/"+url.PathEscape(eventID)+"/attendees/", url.Values{}, func(raw json.RawMessage) (bool, string, error) {
		var page struct {
			Attendees  []Attendee `json:"attendees"`
			Pagination pagination `json:"pagination"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return false, "", err
		}
		attendees = append(attendees, page.Attendees...)
		return page.Pagination.HasMoreItems, page.Pagination.Continuation, nil
	})
	if err != nil {
		return nil, err
	}
	return attendees, nil
}

func (c *Client) paginate(ctx context.Context, path string, query url.Values, page func(json.RawMessage) (bool, string, error)) error {
	for {
		var raw json.RawMessage
		if err := c.get(ctx, path, query, &raw); err != nil {
			return err
		}
		more, continuation, err := page(raw)
		if err != nil {
			return fmt.Errorf("eventbrite: decode %s: %w", path, err)
		}
		if !more || continuation == "" {
			return nil
		}
		query.Set("continuation", continuation)
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("eventbrite: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("eventbrite: decode %s: %w", path, err)
	}
	return nil
}
