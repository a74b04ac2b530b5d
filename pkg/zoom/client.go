// Package zoom is a client for the Zoom v2 REST API authenticated with a
// server-to-server OAuth app.
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL  = "https://api.zoom.us/v2"
	DefaultTokenURL = "https://zoom.us/oauth/token"
	pageSize        = "300"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zoom: status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// Webinar is a scheduled webinar.
type Webinar struct {
	ID        int64  `json:"id"`
	UUID      string `json:"uuid"`
	Topic     string `json:"topic"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Timezone  string `json:"timezone"`
	JoinURL   string `json:"join_url"`
}

// Start parses the webinar start time.
func (w Webinar) Start() (time.Time, error) {
	return time.Parse(time.RFC3339, w.StartTime)
}

// Participant is one connection in the webinar participants report. A person
// who reconnects appears several times.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UserEmail string `json:"user_email"`
	JoinTime  string `json:"join_time"`
	LeaveTime string `json:"leave_time"`
	Duration  int64  `json:"duration"`
}

// Panelist is a webinar panelist.
type Panelist struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Config holds the server-to-server app credentials.
type Config struct {
	BaseURL      string
	TokenURL     string
	AccountID    string
	ClientID     string
	ClientSecret string
	User         string
	Timeout      time.Duration
}

// Client calls the API on behalf of one Zoom user.
type Client struct {
	baseURL string
	user    string
	http    *http.Client
}

// New builds a client whose transport fetches and refreshes account tokens.
func New(ctx context.Context, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.User == "" {
		cfg.User = "me"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
		EndpointParams: url.Values{
			"grant_type": {"account_credentials"},
			"account_id": {cfg.AccountID},
		},
	}
	hc := cc.Client(ctx)
	hc.Timeout = cfg.Timeout

	return &Client{baseURL: strings.TrimRight(cfg.BaseURL, "/"), user: cfg.User, http: hc}
}

// ListWebinars returns the user's scheduled webinars.
func (c *Client) ListWebinars(ctx context.Context) ([]Webinar, error) {
	var webinars []Webinar
	path := "/users/" + url.PathEscape(c.user) + "/webinars"
	err := c.paginate(ctx, path, url.Values{"type": {"scheduled"}}, func(raw json.RawMessage) (string, error) {
		var page struct {
			Webinars      []Webinar `json:"webinars"`
			NextPageToken string    `json:"next_page_token"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return "", err
		}
		webinars = append(webinars, page.Webinars...)
		return page.NextPageToken, nil
	})
	if err != nil {
		return nil, err
	}
	return webinars, nil
}

// FindWebinarOn returns the first scheduled webinar starting on date
// (YYYY-MM-DD) in loc, or nil.
func (c *Client) FindWebinarOn(ctx context.Context, date string, loc *time.Location) (*Webinar, error) {
	webinars, err := c.ListWebinars(ctx)
	if err != nil {
		return nil, err
	}
	for i := range webinars {
		start, err := webinars[i].Start()
		if err != nil {
			continue
		}
		if start.In(loc).Format("2006-01-02") == date {
			return &webinars[i], nil
		}
	}
	return nil, nil
}

// GetWebinar fetches one webinar.
func (c *Client) GetWebinar(ctx context.Context, webinarID string) (*Webinar, error) {
	id, err := parseID(webinarID)
	if err != nil {
		return nil, err
	}
	var w Webinar
	if err := c.do(ctx, http.MethodGet, "/webinars/"+id, nil, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Participants returns the participants report of a past webinar.
func (c *Client) Participants(ctx context.Context, webinarID string) ([]Participant, error) {
	id, err := parseID(webinarID)
	if err != nil {
		return nil, err
	}
	var participants []Participant
	err = c.paginate(ctx, "/report/webinars/"+id+"/participants", url.Values{}, func(raw json.RawMessage) (string, error) {
		var page struct {
			Participants  []Participant `json:"participants"`
			NextPageToken string        `json:"next_page_token"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return "", err
		}
		participants = append(participants, page.Participants...)
		return page.NextPageToken, nil
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// Panelists lists the webinar panelists.
func (c *Client) Panelists(ctx context.Context, webinarID string) ([]Panelist, error) {
	id, err := parseID(webinarID)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Panelists []Panelist `json:"panelists"`
	}
	if err := c.do(ctx, http.MethodGet, "/webinars/"+id+"/panelists", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Panelists, nil
}

// AddPanelists adds panelists to the webinar.
func (c *Client) AddPanelists(ctx context.Context, webinarID string, panelists []Panelist) error {
	if len(panelists) == 0 {
		return nil
	}
	id, err := parseID(webinarID)
	if err != nil {
		return err
	}
	body := struct {
		Panelists []Panelist `json:"panelists"`
	}{Panelists: panelists}
	return c.do(ctx, http.MethodPost, "/webinars/"+id+"/panelists", nil, body, nil)
}

func parseID(raw string) (string, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("zoom: invalid webinar id %q", raw)
	}
	return strconv.FormatInt(id, 10), nil
}

func (c *Client) paginate(ctx context.Context, path string, query url.Values, page func(json.RawMessage) (string, error)) error {
	query.Set("page_size", pageSize)
	for {
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
			return err
		}
		next, err := page(raw)
		if err != nil {
			return fmt.Errorf("zoom: decode %s: %w", path, err)
		}
		if next == "" {
			return nil
		}
		query.Set("next_page_token", next)
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("zoom: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("zoom: decode %s: %w", path, err)
	}
	return nil
}
