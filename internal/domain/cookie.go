package domain

import "time"

// Cookie is one persisted state entry. A nil ExpiresAt means the cookie
// lives until it is overwritten.
type Cookie struct {
	Name      string
	Value     string
	Domain    string
	ExpiresAt *time.Time
}

func (c Cookie) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
