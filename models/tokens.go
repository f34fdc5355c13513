package models

import "time"

// OAuthTokenSet holds the credentials a teacher granted for one external
// calendar provider. It is read and written only by that provider's adapter.
type OAuthTokenSet struct {
	AccessToken  string    `bson:"accessToken" json:"accessToken"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	Expiry       time.Time `bson:"expiry" json:"expiry"`
	TokenType    string    `bson:"tokenType" json:"tokenType"`
}

// Expired reports whether the access token has passed its expiry. A small
// skew window avoids using a token that dies mid-request.
func (t *OAuthTokenSet) Expired(now time.Time) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Add(30 * time.Second).Before(t.Expiry)
}
