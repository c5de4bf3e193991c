package identity

import (
	"context"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"classlink/pkg/interfaces"
	"classlink/pkg/types"
)

// Claims is the token shape issued by the platform's auth service (out of
// scope here): user id, display name and role, plus registered claims for
// expiry.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Resolver validates HMAC-signed platform tokens. Resolution is best-effort
// by contract: the relay's correctness does not depend on trusted identity,
// so a missing, malformed or expired token downgrades the connection to the
// anonymous identity instead of failing the signaling channel.
type Resolver struct {
	secret []byte
	audit  interfaces.AuditRecorder
}

// NewResolver creates a resolver around the shared HMAC secret.
func NewResolver(secret string, audit interfaces.AuditRecorder) *Resolver {
	return &Resolver{
		secret: []byte(secret),
		audit:  audit,
	}
}

// Resolve validates the credential and returns the identity to attach to the
// connection. It never returns an error: every failure path yields the
// deterministic anonymous identity keyed by the connection ID.
func (r *Resolver) Resolve(connectionID, credential string) types.Identity {
	identity, reason := r.resolve(connectionID, credential)

	if reason == "" {
		r.record(connectionID, "authenticated", "user="+identity.UserID+" role="+identity.Role)
	} else {
		log.Printf("Identity resolution failed, using anonymous: conn=%s reason=%s", connectionID, reason)
		r.record(connectionID, "auth_failed", reason)
	}

	return identity
}

func (r *Resolver) resolve(connectionID, credential string) (types.Identity, string) {
	anonymous := types.AnonymousIdentity(connectionID)

	if credential == "" {
		return anonymous, "missing credential"
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedSigningMethod
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return anonymous, "invalid or expired token"
	}

	identity := anonymous
	if claims.UserID != "" {
		identity.UserID = claims.UserID
	}
	if claims.Username != "" {
		identity.Username = claims.Username
	}
	if types.IsValidRole(claims.Role) && claims.Role != types.RoleUnknown {
		identity.Role = claims.Role
	}

	return identity, ""
}

func (r *Resolver) record(connectionID, event, detail string) {
	if r.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.audit.Record(ctx, connectionID, event, detail); err != nil {
		log.Printf("Audit record failed: event=%s err=%v", event, err)
	}
}
