package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PaymentClient talks to the payment service that wraps the actual
// processor. The scheduling core only verifies authorizations and
// requests refunds; capture mechanics live elsewhere.
type PaymentClient struct {
	baseURL string
	client  *http.Client
}

func NewPaymentClient(baseURL string) *PaymentClient {
	return &PaymentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyRequest struct {
	UserID      int64  `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Ref         string `json:"ref"`
}

// VerifyAuthorization confirms that ref is a successful authorization for
// the amount on behalf of the user.
func (c *PaymentClient) VerifyAuthorization(ctx context.Context, userID int64, amountCents int64, ref string) error {
	payload, err := json.Marshal(verifyRequest{UserID: userID, AmountCents: amountCents, Ref: ref})
	if err != nil {
		return fmt.Errorf("encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/authorizations/verify", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("verify authorization: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authorization %s not accepted: status %d", ref, resp.StatusCode)
	}

	return nil
}

type refundRequest struct {
	BookingID int64  `json:"booking_id"`
	Reason    string `json:"reason"`
}

func (c *PaymentClient) Refund(ctx context.Context, bookingID int64, reason string) error {
	payload, err := json.Marshal(refundRequest{BookingID: bookingID, Reason: reason})
	if err != nil {
		return fmt.Errorf("encode refund request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/refunds", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request refund: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("refund for booking %d rejected: status %d", bookingID, resp.StatusCode)
	}

	return nil
}
