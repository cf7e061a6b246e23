package domain_test

import (
	"testing"

	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCookieNaming(t *testing.T) {
	orgID := "53A16ACB5CC1D3760A495C99@AdobeOrg"

	assert.Equal(t, "kndctr_53A16ACB5CC1D3760A495C99_AdobeOrg_", domain.CookieNamespace(orgID))
	assert.Equal(t, "kndctr_53A16ACB5CC1D3760A495C99_AdobeOrg_identity", domain.IdentityCookieName(orgID))
	assert.True(t, domain.IsNamespacedCookie(orgID, "kndctr_53A16ACB5CC1D3760A495C99_AdobeOrg_cluster"))
	assert.False(t, domain.IsNamespacedCookie(orgID, "session"))
	assert.Equal(t, "AMCV_"+orgID, domain.LegacyCookieName(orgID))
}

func TestParseLegacyECID(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"standard value", "-1124106680|MCIDTS|18000|MCMID|09870987|vVersion|4.4.0", "09870987"},
		{"missing field", "-1124106680|MCIDTS|18000", ""},
		{"trailing key", "MCMID", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ParseLegacyECID(tt.value))
		})
	}
}

func TestIsFirstPartyDomain(t *testing.T) {
	assert.True(t, domain.IsFirstPartyDomain("edge.example.com", "example.com"))
	assert.True(t, domain.IsFirstPartyDomain("example.com", "example.com"))
	assert.False(t, domain.IsFirstPartyDomain("adobedc.demdex.net", "example.com"))
	assert.False(t, domain.IsFirstPartyDomain("badexample.com", "example.com"))
	assert.False(t, domain.IsFirstPartyDomain("edge.example.com", ""))
}
