package model

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"identical", at(0), at(1), at(0), at(1), true},
		{"partial overlap", at(0), at(2), at(1), at(3), true},
		{"b inside a", at(0), at(3), at(1), at(2), true},
		{"a inside b", at(1), at(2), at(0), at(3), true},
		{"back to back, a first", at(0), at(1), at(1), at(2), false},
		{"back to back, b first", at(1), at(2), at(0), at(1), false},
		{"disjoint", at(0), at(1), at(2), at(3), false},
		{"one minute overlap", at(0), at(1), at(1).Add(-time.Minute), at(2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps(%v, %v, %v, %v) = %v, want %v",
					tt.aStart, tt.aEnd, tt.bStart, tt.bEnd, got, tt.want)
			}
		})
	}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	aStart, aEnd := base, base.Add(2*time.Hour)
	bStart, bEnd := base.Add(time.Hour), base.Add(3*time.Hour)

	if Overlaps(aStart, aEnd, bStart, bEnd) != Overlaps(bStart, bEnd, aStart, aEnd) {
		t.Error("Overlaps is not symmetric")
	}
}

func TestHoldExpired(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		slot Slot
		want bool
	}{
		{"held, expiry in past", Slot{Status: SlotStatusHeld, HoldExpiresAt: &past}, true},
		{"held, expiry exactly now", Slot{Status: SlotStatusHeld, HoldExpiresAt: &now}, true},
		{"held, expiry in future", Slot{Status: SlotStatusHeld, HoldExpiresAt: &future}, false},
		{"held, no expiry", Slot{Status: SlotStatusHeld}, false},
		{"open slot", Slot{Status: SlotStatusOpen, HoldExpiresAt: &past}, false},
		{"booked slot", Slot{Status: SlotStatusBooked, HoldExpiresAt: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.slot.HoldExpired(now); got != tt.want {
				t.Errorf("HoldExpired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookingStatusTerminal(t *testing.T) {
	terminal := map[BookingStatus]bool{
		BookingStatusPendingPayment: false,
		BookingStatusConfirmed:      false,
		BookingStatusCanceled:       true,
		BookingStatusCompleted:      true,
		BookingStatusRefunded:       false,
	}

	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
