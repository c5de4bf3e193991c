package interfaces

import "classlink/pkg/types"

// IdentityResolver validates an opaque credential and yields the identity to
// attach to a connection. Resolution never fails: a missing, malformed or
// expired credential produces the anonymous fallback identity keyed by the
// connection ID. Identity is advisory metadata for room membership lists, not
// an authorization boundary.
type IdentityResolver interface {
	Resolve(connectionID, credential string) types.Identity
}
