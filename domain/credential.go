package domain

import "time"

// OAuthCredential is the persisted OAuth token set for one (user, provider)
// pair. The access token is an opaque provider secret; ExpiresAt is always
// populated whenever AccessToken is. The refresh token may be empty for
// providers that did not grant offline access.
type OAuthCredential struct {
	UserID       string    `bson:"user_id" json:"user_id"`
	Provider     Provider  `bson:"provider" json:"provider"`
	AccessToken  string    `bson:"access_token" json:"-"`
	RefreshToken string    `bson:"refresh_token,omitempty" json:"-"`
	ExpiresAt    time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// ExpiringWithin reports whether the access token expires before now+window.
// Used by the orchestrator to decide on a pre-emptive refresh.
func (c *OAuthCredential) ExpiringWithin(window time.Duration, now time.Time) bool {
	return !now.Add(window).Before(c.ExpiresAt)
}
