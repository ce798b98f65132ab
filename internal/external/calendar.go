package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tutorhive/tutorhive-server/internal/model"
)

// CalendarBridge talks to the calendar integration service that fronts
// the users' connected calendars. It backs both the busy-time source and
// the event sink.
type CalendarBridge struct {
	baseURL string
	client  *http.Client
}

func NewCalendarBridge(baseURL string) *CalendarBridge {
	return &CalendarBridge{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// BusyIntervals fetches the tutor's externally booked ranges. Transient
// failures are retried with bounded backoff; callers still treat a final
// error as "no busy intervals".
func (c *CalendarBridge) BusyIntervals(ctx context.Context, tutorID int64, from, to time.Time) ([]model.Interval, error) {
	q := url.Values{}
	q.Set("tutor_id", strconv.FormatInt(tutorID, 10))
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	endpoint := c.baseURL + "/v1/freebusy?" + q.Encode()

	var intervals []model.Interval
	backoff := retry.WithMaxRetries(2, retry.NewExponential(300*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("freebusy returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("freebusy returned %d", resp.StatusCode)
		}

		intervals = intervals[:0]
		if err := json.NewDecoder(resp.Body).Decode(&intervals); err != nil {
			return fmt.Errorf("decode freebusy response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch busy intervals: %w", err)
	}

	return intervals, nil
}

type eventRequest struct {
	PartyID   int64     `json:"party_id"`
	BookingID int64     `json:"booking_id"`
	Title     string    `json:"title"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
}

type eventResponse struct {
	EventID string `json:"event_id"`
}

// CreateEvent mirrors a booking into the party's calendar and returns the
// provider event id.
func (c *CalendarBridge) CreateEvent(ctx context.Context, partyID int64, booking *model.Booking) (string, error) {
	payload, err := json.Marshal(eventRequest{
		PartyID:   partyID,
		BookingID: booking.ID,
		Title:     "Tutoring session",
		StartAt:   booking.StartAt,
		EndAt:     booking.EndAt,
	})
	if err != nil {
		return "", fmt.Errorf("encode event request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/events", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create calendar event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create calendar event: status %d", resp.StatusCode)
	}

	var out eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode event response: %w", err)
	}

	return out.EventID, nil
}

// DeleteEvent removes a previously created calendar event.
func (c *CalendarBridge) DeleteEvent(ctx context.Context, partyID int64, eventID string) error {
	endpoint := fmt.Sprintf("%s/v1/events/%s?party_id=%d", c.baseURL, url.PathEscape(eventID), partyID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete calendar event: status %d", resp.StatusCode)
	}

	return nil
}
