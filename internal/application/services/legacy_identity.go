package services

import (
	"context"
	"fmt"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/domain"
)

// CookieLegacyIdentity reads the ECID minted by the previous visitor library
// from its AMCV cookie.
type CookieLegacyIdentity struct {
	store application.CookieStore
	orgID string
}

func NewCookieLegacyIdentity(store application.CookieStore, orgID string) *CookieLegacyIdentity {
	return &CookieLegacyIdentity{store: store, orgID: orgID}
}

func (l *CookieLegacyIdentity) LegacyECID(ctx context.Context) (string, error) {
	value, ok, err := l.store.Get(ctx, domain.LegacyCookieName(l.orgID))
	if err != nil {
		return "", fmt.Errorf("read legacy cookie: %w", err)
	}
	if !ok {
		return "", nil
	}
	return domain.ParseLegacyECID(value), nil
}
