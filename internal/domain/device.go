package domain

import "time"

// Device is a registered POS terminal. The raw token is returned exactly
// once at registration; only its hash is stored.
type Device struct {
	ID          string
	CompanyID   string
	Name        string
	TokenHash   string
	Active      bool
	LastSeenAt  *time.Time
	LastEventAt *time.Time
	CreatedAt   time.Time
}

// Heartbeat is the periodic liveness report a device sends alongside its
// sync traffic.
type Heartbeat struct {
	DeviceID     string
	QueueDepth   int
	OldestQueued *time.Time
	AppVersion   string
	SentAt       time.Time
}
