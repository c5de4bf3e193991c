package interfaces

import "context"

// AuditRecorder journals signaling lifecycle events (connects, authentication
// outcomes, room joins/leaves, relay drops) for diagnostics. Recording is
// advisory: failures are logged by implementations and never surfaced to the
// signaling path.
type AuditRecorder interface {
	Record(ctx context.Context, connectionID, event, detail string) error
	Close() error
}
