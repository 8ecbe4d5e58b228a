// Package calendar reads webinar attendee lists from Google Calendar. Only
// the aggregator's webinar inputs and the reminder-email materializer
// consume it.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/ignite/contact-core/internal/config"
)

// Event is one upcoming webinar with its attendee emails.
type Event struct {
	EventID   string
	Summary   string
	Start     time.Time
	Attendees []string
}

// Reader lists upcoming events; narrow so tests can fake it.
type Reader interface {
	UpcomingEvents(ctx context.Context, within time.Duration) ([]Event, error)
}

// Client reads the configured calendar through the Google API.
type Client struct {
	service    *gcal.Service
	calendarID string
}

// NewClient builds the calendar client from OAuth refresh-token credentials.
func NewClient(ctx context.Context, cfg config.CalendarConfig) (*Client, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	service, err := gcal.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{service: service, calendarID: calendarID}, nil
}

// UpcomingEvents returns events starting within the window, each with its
// attendee email list (declined attendees excluded).
func (c *Client) UpcomingEvents(ctx context.Context, within time.Duration) ([]Event, error) {
	now := time.Now().UTC()
	call := c.service.Events.List(c.calendarID).
		Context(ctx).
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.Add(within).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		ev := Event{EventID: item.Id, Summary: item.Summary}
		if item.Start != nil && item.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
				ev.Start = t
			}
		}
		for _, a := range item.Attendees {
			if a.Email == "" || a.ResponseStatus == "declined" {
				continue
			}
			ev.Attendees = append(ev.Attendees, strings.ToLower(a.Email))
		}
		events = append(events, ev)
	}
	return events, nil
}
