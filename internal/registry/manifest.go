package registry

import (
	"fincore/internal/fetcher"
)

// Manifest is a provider's explicit registration: its identity, the
// credentials it needs and the fetchers it implements.
type Manifest struct {
	Provider    string
	Description string
	Website     string
	// Credentials lists every credential name any fetcher of this provider
	// may read.
	Credentials []string
	// CheckCredentials, when set, can accept credential sets the plain
	// presence check would reject (e.g. alternative key names).
	CheckCredentials func(fetcher.Credentials) bool
	Fetchers         []fetcher.Fetcher
}
