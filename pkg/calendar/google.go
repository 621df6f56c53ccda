package calendar

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleOptions locate the OAuth material for the Google provider.
type GoogleOptions struct {
	CredentialsPath string
	TokenPath       string
	CalendarID      string
}

// GoogleProvider reads entries from a Google Calendar with read-only scope.
type GoogleProvider struct {
	srv        *gcal.Service
	calendarID string
}

// NewGoogleProvider builds a provider from a client secrets file and a
// previously authorized token file.
func NewGoogleProvider(ctx context.Context, opts GoogleOptions) (*GoogleProvider, error) {
	b, err := os.ReadFile(opts.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read client secret file %s: %w", opts.CredentialsPath, err)
	}
	conf, err := google.ConfigFromJSON(b, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	tok, err := readToken(opts.TokenPath)
	if err != nil {
		return nil, err
	}

	srv, err := gcal.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	id := opts.CalendarID
	if id == "" {
		id = "primary"
	}
	return &GoogleProvider{srv: srv, calendarID: id}, nil
}

// Entries lists single (expanded) events starting in [start, end).
func (g *GoogleProvider) Entries(ctx context.Context, start, end time.Time) ([]Entry, error) {
	events, err := g.srv.Events.List(g.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}

	out := make([]Entry, 0, len(events.Items))
	for _, item := range events.Items {
		if item.Status == "cancelled" {
			continue
		}
		e, err := convert(item, start.Location())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func convert(item *gcal.Event, loc *time.Location) (Entry, error) {
	e := Entry{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}
	if e.Title == "" {
		e.Title = "(no title)"
	}
	start, allDay, err := eventTime(item.Start, loc)
	if err != nil {
		return Entry{}, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	e.Start, e.AllDay = start, allDay
	if item.End != nil {
		end, _, err := eventTime(item.End, loc)
		if err != nil {
			return Entry{}, fmt.Errorf("event %s end: %w", item.Id, err)
		}
		if end.After(start) {
			e.End = &end
		}
	}
	return e, nil
}

// eventTime reads either a timed or an all-day boundary.
func eventTime(dt *gcal.EventDateTime, loc *time.Location) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, fmt.Errorf("missing time")
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false, err
		}
		return t.In(loc), false, nil
	}
	t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file %s: %w", path, err)
	}
	defer f.Close()
	tok := new(oauth2.Token)
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", path, err)
	}
	return tok, nil
}

// WriteTokenFromBase64 materializes a base64-encoded token (as deployed
// through an environment variable) at path. It does nothing when encoded is
// empty.
func WriteTokenFromBase64(encoded, path string) error {
	if encoded == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode calendar token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return fmt.Errorf("calendar token is not a JSON oauth2 token: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write calendar token: %w", err)
	}
	return nil
}
