package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailsync/ledger/internal/domain"
)

// DeviceRepository implements device persistence
type DeviceRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

const deviceColumns = `id, company_id, name, token_hash, active, last_seen_at, last_event_at, created_at`

func scanDevice(row pgx.Row) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.ID,
		&d.CompanyID,
		&d.Name,
		&d.TokenHash,
		&d.Active,
		&d.LastSeenAt,
		&d.LastEventAt,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new device
func (r *DeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	query := `
		INSERT INTO devices (id, company_id, name, token_hash, active, last_seen_at, last_event_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		device.ID,
		device.CompanyID,
		device.Name,
		device.TokenHash,
		device.Active,
		device.LastSeenAt,
		device.LastEventAt,
		device.CreatedAt,
	)
	return err
}

// GetByID retrieves a device by ID
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	device, err := scanDevice(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDeviceNotFound
	}
	return device, err
}

// UpdateTokenHash replaces the stored credential hash
func (r *DeviceRepository) UpdateTokenHash(ctx context.Context, id, tokenHash string) error {
	return r.execOne(ctx, `UPDATE devices SET token_hash = $2 WHERE id = $1`, id, tokenHash)
}

// SetActive enables or disables a device
func (r *DeviceRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.execOne(ctx, `UPDATE devices SET active = $2 WHERE id = $1`, id, active)
}

// TouchLastSeen stamps the most recent authenticated contact
func (r *DeviceRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, `UPDATE devices SET last_seen_at = $2 WHERE id = $1`, id, at)
}

// RecordHeartbeat stores a liveness report and advances last_seen_at
func (r *DeviceRepository) RecordHeartbeat(ctx context.Context, hb *domain.Heartbeat) error {
	query := `
		INSERT INTO device_heartbeats (device_id, queue_depth, oldest_queued, app_version, sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		hb.DeviceID, hb.QueueDepth, hb.OldestQueued, hb.AppVersion, hb.SentAt)
	if err != nil {
		return err
	}

	return r.TouchLastSeen(ctx, hb.DeviceID, hb.SentAt)
}

// List retrieves all devices of a company
func (r *DeviceRepository) List(ctx context.Context, companyID string) ([]*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE company_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

func (r *DeviceRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}
