// Package domain contains core concepts of the messaging system:
// identities, rooms, messages, and reactions. No runtime, network,
// or storage logic lives here.
package domain

import (
	"strings"
	"time"
)

// AdminMarker is appended once to the display name of a promoted identity.
const AdminMarker = " (admin)"

// Identity is a registered account. The password hash is an encoded
// argon2id string; the plaintext is never stored.
type Identity struct {
	Username     string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	AvatarURL    string
	CreatedAt    time.Time
}

// Promote marks the identity as admin. Idempotent: the display-name
// marker is appended at most once.
func (i *Identity) Promote() {
	i.IsAdmin = true
	if !strings.HasSuffix(i.DisplayName, AdminMarker) {
		i.DisplayName += AdminMarker
	}
}
