// Package recurrence expands iCalendar RRULE strings into concrete
// occurrence start times within a bounded window.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Expander turns a recurrence rule anchored at a start time into the
// finite list of occurrences inside [from, to].
type Expander interface {
	Expand(rule string, anchor, from, to time.Time) ([]time.Time, error)
}

// RRuleExpander backs Expander with the rrule-go parser.
type RRuleExpander struct{}

func NewRRuleExpander() *RRuleExpander {
	return &RRuleExpander{}
}

// Expand parses rule (e.g. "FREQ=WEEKLY;BYDAY=MO"), anchors it at anchor
// and returns all occurrences in [from, to] inclusive, in order.
func (e *RRuleExpander) Expand(rule string, anchor, from, to time.Time) ([]time.Time, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", rule, err)
	}
	opt.Dtstart = anchor.UTC()

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule %q: %w", rule, err)
	}

	return r.Between(from.UTC(), to.UTC(), true), nil
}
