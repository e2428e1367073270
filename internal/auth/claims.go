package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the only supported JWT claims shape for this service.
// Tenancy invariant: Software must be present; every settlement row is
// partitioned by it. Permission bits are carried verbatim from the agent
// record at login time (see internal/perm).
type Claims struct {
	jwt.RegisteredClaims

	Username    string `json:"username"`
	Software    string `json:"software"`
	Permissions int64  `json:"permissions"`
}
