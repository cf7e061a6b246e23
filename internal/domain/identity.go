package domain

import (
	"strings"
)

const (
	NamespaceECID = "ECID"

	cookiePrefix       = "kndctr"
	identityCookieName = "identity"
	legacyCookiePrefix = "AMCV_"
	legacyECIDField    = "MCMID"
)

// CookieNamespace returns the prefix shared by every cookie owned by orgID.
func CookieNamespace(orgID string) string {
	return cookiePrefix + "_" + strings.ReplaceAll(orgID, "@", "_") + "_"
}

func IdentityCookieName(orgID string) string {
	return CookieNamespace(orgID) + identityCookieName
}

func IsNamespacedCookie(orgID, name string) bool {
	return strings.HasPrefix(name, CookieNamespace(orgID))
}

// LegacyCookieName is the cookie written by the previous generation of the
// visitor library.
func LegacyCookieName(orgID string) string {
	return legacyCookiePrefix + orgID
}

// ParseLegacyECID extracts the ECID from a legacy cookie value of the form
// "<version>|MCIDTS|<ts>|MCMID|<ecid>|...".
func ParseLegacyECID(value string) string {
	parts := strings.Split(value, "|")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == legacyECIDField {
			return parts[i+1]
		}
	}
	return ""
}

// IsFirstPartyDomain reports whether endpoint is served under apex.
func IsFirstPartyDomain(endpoint, apex string) bool {
	if apex == "" {
		return false
	}
	return endpoint == apex || strings.HasSuffix(endpoint, "."+apex)
}
