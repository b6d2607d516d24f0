package models

import "time"

// Provider names, in registry priority order.
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
	ProviderYahoo     = "yahoo"
)

// ProviderPriority is the fixed order used when selecting the active provider.
var ProviderPriority = []string{ProviderGoogle, ProviderMicrosoft, ProviderYahoo}

// ValidProvider reports whether name is a supported provider.
func ValidProvider(name string) bool {
	for _, p := range ProviderPriority {
		if p == name {
			return true
		}
	}
	return false
}

// Integration is a persisted OAuth credential record for one provider.
// At most one row exists per provider.
type Integration struct {
	Provider      string    `json:"provider"`
	AccessToken   string    `json:"-"`
	RefreshToken  string    `json:"-"`
	ExpiresAt     time.Time `json:"expires_at"`
	ProviderEmail string    `json:"provider_email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
