package model

import "time"

type CreditReason string

const (
	CreditReasonPurchase CreditReason = "purchase"
	CreditReasonBooking  CreditReason = "booking"
	CreditReasonRefund   CreditReason = "refund"
	CreditReasonManual   CreditReason = "manual"
)

// CreditEntry is one row of the append-only prepaid credit ledger.
// BalanceAfter is the running balance once Delta is applied.
type CreditEntry struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	Delta        int64        `json:"delta"`
	Reason       CreditReason `json:"reason"`
	BookingID    *int64       `json:"booking_id,omitempty"`
	BalanceAfter int64        `json:"balance_after"`
	CreatedAt    time.Time    `json:"created_at"`
}
