package auth

import "time"

// Credential is the single OAuth credential record the gateway operates on.
// RefreshToken is never empty once a record exists. A published record is
// immutable: refresh and project updates install a fresh copy rather than
// writing through a pointer other goroutines may be reading.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expiry"`
	Email        string    `json:"email,omitempty"`
	ProjectID    string    `json:"project_id,omitempty"`
}

// Valid reports whether the record can be used at all. A record without a
// refresh token cannot be kept alive and is treated as absent.
func (c *Credential) Valid() bool {
	return c != nil && c.RefreshToken != ""
}
