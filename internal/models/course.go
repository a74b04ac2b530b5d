package models

import (
	"fmt"
	"time"
)

// Course groups the sessions sharing a course_id, in spreadsheet row order.
type Course struct {
	ID       string     `json:"course_id"`
	Sessions []*Session `json:"sessions"`
}

// FirstSession is the canonical source of course-level fields.
func (c *Course) FirstSession() *Session {
	if len(c.Sessions) == 0 {
		return nil
	}
	return c.Sessions[0]
}

func (c *Course) Title() string        { return c.FirstSession().Title() }
func (c *Course) Code() string         { return c.FirstSession().Code() }
func (c *Course) Language() string     { return c.FirstSession().Language() }
func (c *Course) EventbriteID() string { return c.FirstSession().EventbriteID() }
func (c *Course) ZoomID() string       { return c.FirstSession().ZoomID() }
func (c *Course) SlackChannel() string { return c.FirstSession().SlackChannel() }

// Start is the earliest session start.
func (c *Course) Start(loc *time.Location) (time.Time, error) {
	var start time.Time
	for i, s := range c.Sessions {
		t, err := s.StartTime(loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("course %s: %w", c.ID, err)
		}
		if i == 0 || t.Before(start) {
			start = t
		}
	}
	return start, nil
}

// End is the latest session end.
func (c *Course) End(loc *time.Location) (time.Time, error) {
	last, err := c.LatestSession(loc)
	if err != nil {
		return time.Time{}, err
	}
	return last.EndTime(loc)
}

// LatestSession returns the session that ends last.
func (c *Course) LatestSession(loc *time.Location) (*Session, error) {
	var (
		latest *Session
		end    time.Time
	)
	for _, s := range c.Sessions {
		t, err := s.EndTime(loc)
		if err != nil {
			return nil, fmt.Errorf("course %s: %w", c.ID, err)
		}
		if latest == nil || t.After(end) {
			latest, end = s, t
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("course %s has no sessions", c.ID)
	}
	return latest, nil
}

// TrainerKeys collects the trainer keys found in the given role fields over
// every session, de-duplicated in first-seen order.
func (c *Course) TrainerKeys(fields ...string) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	for _, s := range c.Sessions {
		for _, field := range fields {
			for _, key := range SplitKeys(s.Value(field)) {
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
		}
	}
	return keys
}
