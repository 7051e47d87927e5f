// Package access scopes catalog reads to what a user is entitled to see.
//
// Entitlements travel in signed bearer tokens. A user must be verified, not
// blocked and hold a subscription valid through today; contract reads are
// then narrowed to the user's assigned date range and brand allow-list, and
// seller reads to the category allow-list.
package access

import (
	"errors"
	"strings"
	"time"

	"gemdesk/internal/textutil"
)

// ErrForbidden rejects a user whose account or subscription does not allow
// catalog access.
var ErrForbidden = errors.New("access forbidden")

// Entitlement is the per-user access scope.
type Entitlement struct {
	Verified          bool       `json:"verified"`
	Blocked           bool       `json:"blocked"`
	SubscriptionUntil *time.Time `json:"subscription_until,omitempty"`
	DateStart         *time.Time `json:"date_start,omitempty"`
	DateEnd           *time.Time `json:"date_end,omitempty"`
	// Brands and Categories are allow-lists; empty means unrestricted.
	Brands     []string `json:"brands,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Authorize returns ErrForbidden unless the user is verified, not blocked and
// subscribed through the calendar day of now (UTC).
func (e Entitlement) Authorize(now time.Time) error {
	switch {
	case !e.Verified:
		return errors.Join(ErrForbidden, errors.New("account not verified"))
	case e.Blocked:
		return errors.Join(ErrForbidden, errors.New("account blocked"))
	case e.SubscriptionUntil == nil:
		return errors.Join(ErrForbidden, errors.New("no subscription"))
	case day(*e.SubscriptionUntil).Before(day(now)):
		return errors.Join(ErrForbidden, errors.New("subscription expired"))
	}
	return nil
}

// HasDateRange reports whether both ends of the assigned range are set.
func (e Entitlement) HasDateRange() bool {
	return e.DateStart != nil && e.DateEnd != nil
}

// InRange reports whether t falls on a day inside the assigned range.
func (e Entitlement) InRange(t time.Time) bool {
	if !e.HasDateRange() {
		return true
	}
	d := day(t)
	return !d.Before(day(*e.DateStart)) && !d.After(day(*e.DateEnd))
}

// BrandSet returns the normalized brand allow-list.
func (e Entitlement) BrandSet() map[string]struct{} {
	return textutil.SplitList(strings.Join(e.Brands, ","))
}

// CategoryList returns the normalized category allow-list.
func (e Entitlement) CategoryList() []string {
	set := textutil.SplitList(strings.Join(e.Categories, ","))
	out := make([]string, 0, len(set))
	for category := range set {
		out = append(out, category)
	}
	return out
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
