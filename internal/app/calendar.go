package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"clinic-scheduler/internal/scheduling"
)

const googleTokenHeader = "X-Google-Token"

// GoogleCalendarConfig holds the OAuth2 client used to read the provider's
// calendar.
type GoogleCalendarConfig struct {
	Config *oauth2.Config
}

// EventSource lists calendar events intersecting [from, to).
type EventSource func(ctx context.Context, token *oauth2.Token, from, to time.Time) ([]CalendarEvent, error)

// NewGoogleCalendarConfig returns nil unless all three settings are present.
func NewGoogleCalendarConfig(clientID, clientSecret, redirectURL string) *GoogleCalendarConfig {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &GoogleCalendarConfig{Config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}}
}

// GoogleEvents reads the primary calendar through the Calendar API.
func (g *GoogleCalendarConfig) GoogleEvents(ctx context.Context, token *oauth2.Token, from, to time.Time) ([]CalendarEvent, error) {
	client := g.Config.Client(ctx, token)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	var out []CalendarEvent
	err = srv.Events.List("primary").
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		MaxResults(250).
		Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				if ev, ok := toCalendarEvent(item); ok {
					out = append(out, ev)
				}
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return out, nil
}

// toCalendarEvent drops cancelled and transparent (free) events, and events
// whose times cannot be read.
func toCalendarEvent(item *calendar.Event) (CalendarEvent, bool) {
	if item == nil || item.Status == "cancelled" || item.Transparency == "transparent" {
		return CalendarEvent{}, false
	}
	start, ok := eventTime(item.Start)
	if !ok {
		return CalendarEvent{}, false
	}
	end, ok := eventTime(item.End)
	if !ok {
		return CalendarEvent{}, false
	}
	return CalendarEvent{
		ID:      item.Id,
		Summary: item.Summary,
		StartAt: start,
		EndAt:   end,
		Status:  item.Status,
	}, true
}

func eventTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return scheduling.Canonical(t), err == nil
	}
	if dt.Date != "" {
		// All-day events; the date is read as UTC midnight.
		t, err := time.Parse("2006-01-02", dt.Date)
		return scheduling.Canonical(t), err == nil
	}
	return time.Time{}, false
}

// GET /api/provider/calendar/auth
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	state := uuid.NewString()
	c.JSON(http.StatusOK, gin.H{
		"auth_url": a.Calendar.Config.AuthCodeURL(state, oauth2.AccessTypeOffline),
		"state":    state,
	})
}

// GET /oauth2callback
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}

	token, err := a.Calendar.Config.Exchange(c.Request.Context(), code)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("google oauth exchange failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		a.writeError(c, err)
		return
	}

	// The token is handed back to the caller, who presents it in X-Google-Token.
	c.JSON(http.StatusOK, gin.H{
		"message": "Authorization successful",
		"state":   c.Query("state"),
		"token":   string(tokenJSON),
	})
}

// GET /api/provider/calendar/conflicts?from=&to=
func (a *App) CalendarConflictsHandler(c *gin.Context) {
	tokenStr := c.GetHeader(googleTokenHeader)
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Google token required in " + googleTokenHeader + " header"})
		return
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenStr), &token); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token format"})
		return
	}
	if a.CalendarEvents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}

	from, err := parseTimeField("from", c.Query("from"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	to, err := parseTimeField("to", c.Query("to"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	query := scheduling.NewInterval(from, to)
	if !query.Valid() {
		a.writeError(c, scheduling.NewValidationError("'to' must be after 'from'"))
		return
	}

	ctx := c.Request.Context()
	windows, err := a.Service.ListWindows(ctx, a.ProviderID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	events, err := a.CalendarEvents(ctx, &token, from, to)
	if err != nil {
		a.Logger.Error().Err(err).Msg("calendar lookup failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to retrieve calendar events"})
		return
	}

	c.JSON(http.StatusOK, matchConflicts(windows, events, query))
}

// matchConflicts pairs every active window intersecting query with the
// calendar events that overlap it.
func matchConflicts(windows []scheduling.AvailabilityWindow, events []CalendarEvent, query scheduling.Interval) []windowConflicts {
	out := []windowConflicts{}
	for _, w := range windows {
		if !w.Active || !w.Interval().Overlaps(query) {
			continue
		}
		hits := []CalendarEvent{}
		for _, ev := range events {
			if ev.Interval().Overlaps(w.Interval()) {
				hits = append(hits, ev)
			}
		}
		out = append(out, windowConflicts{Window: w, Events: hits})
	}
	return out
}
