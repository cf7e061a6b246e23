package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/domain"
)

// CookieTransfer moves identity state between cookie storage and payloads.
type CookieTransfer struct {
	store      application.CookieStore
	orgID      string
	apexDomain string
	now        func() time.Time
}

func NewCookieTransfer(store application.CookieStore, orgID, apexDomain string) *CookieTransfer {
	return &CookieTransfer{
		store:      store,
		orgID:      orgID,
		apexDomain: apexDomain,
		now:        time.Now,
	}
}

// CookiesToPayload merges the org's cookies into payload state. First-party
// endpoints receive cookies as headers, so entries are only copied for
// endpoints outside the apex domain.
func (t *CookieTransfer) CookiesToPayload(ctx context.Context, payload *domain.Payload, endpointDomain string) error {
	state := domain.State{
		Domain:         t.apexDomain,
		CookiesEnabled: true,
	}

	if !domain.IsFirstPartyDomain(endpointDomain, t.apexDomain) {
		cookies, err := t.store.All(ctx)
		if err != nil {
			return fmt.Errorf("read cookies: %w", err)
		}

		names := make([]string, 0, len(cookies))
		for name := range cookies {
			if domain.IsNamespacedCookie(t.orgID, name) {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			state.Entries = append(state.Entries, domain.StateEntry{Key: name, Value: cookies[name]})
		}
	}

	payload.MergeState(state)
	return nil
}

// ResponseToCookies persists every state:store item verbatim.
func (t *CookieTransfer) ResponseToCookies(ctx context.Context, response *domain.Response) error {
	for _, item := range response.StateStoreItems() {
		cookie := domain.Cookie{
			Name:   item.Key,
			Value:  item.Value,
			Domain: t.apexDomain,
		}
		if item.MaxAge != nil {
			expires := t.now().Add(time.Duration(*item.MaxAge) * time.Second)
			cookie.ExpiresAt = &expires
		}
		if err := t.store.Set(ctx, cookie); err != nil {
			return fmt.Errorf("store cookie %s: %w", item.Key, err)
		}
	}
	return nil
}
