package usecase

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
)

// DeviceUseCase manages POS terminal registration and authentication.
type DeviceUseCase struct {
	deviceRepo DeviceRepository
	tokens     TokenSource
	idGen      IDGenerator
	auditRepo  AuditRepository
	logger     zerolog.Logger
}

// NewDeviceUseCase creates a new DeviceUseCase.
func NewDeviceUseCase(
	deviceRepo DeviceRepository,
	tokens TokenSource,
	idGen IDGenerator,
	auditRepo AuditRepository,
	logger zerolog.Logger,
) *DeviceUseCase {
	return &DeviceUseCase{
		deviceRepo: deviceRepo,
		tokens:     tokens,
		idGen:      idGen,
		auditRepo:  auditRepo,
		logger:     logger,
	}
}

// RegisterInput represents input for registering a device.
type RegisterInput struct {
	CompanyID string
	Name      string
	Operator  string
}

// RegisterOutput carries the one-time raw token back to the operator.
type RegisterOutput struct {
	Device *domain.Device
	Token  string
}

// Register creates a device and issues its credential. The raw token is
// returned exactly once and never stored.
func (uc *DeviceUseCase) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	raw, hash, err := uc.tokens.NewToken()
	if err != nil {
		return nil, err
	}

	device := &domain.Device{
		ID:        uc.idGen.Generate(),
		CompanyID: input.CompanyID,
		Name:      input.Name,
		TokenHash: hash,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.deviceRepo.Create(ctx, device); err != nil {
		return nil, err
	}

	uc.auditRepo.Create(ctx, &domain.AuditLog{
		ActorID:      input.Operator,
		Action:       string(domain.AuditActionDeviceRegister),
		ResourceType: "device",
		ResourceID:   device.ID,
		AfterState:   domain.JSON{"company_id": device.CompanyID, "name": device.Name},
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    device.CreatedAt,
	})
	uc.logger.Info().Str("device_id", device.ID).Str("company_id", device.CompanyID).Msg("device registered")

	return &RegisterOutput{Device: device, Token: raw}, nil
}

// ResetToken invalidates the current credential and issues a new one.
func (uc *DeviceUseCase) ResetToken(ctx context.Context, deviceID, operator string) (*RegisterOutput, error) {
	device, err := uc.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	raw, hash, err := uc.tokens.NewToken()
	if err != nil {
		return nil, err
	}
	if err := uc.deviceRepo.UpdateTokenHash(ctx, deviceID, hash); err != nil {
		return nil, err
	}
	device.TokenHash = hash

	uc.auditRepo.Create(ctx, &domain.AuditLog{
		ActorID:      operator,
		Action:       string(domain.AuditActionDeviceResetToken),
		ResourceType: "device",
		ResourceID:   deviceID,
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    time.Now().UTC(),
	})

	return &RegisterOutput{Device: device, Token: raw}, nil
}

// Disable blocks a device from syncing without deleting its history.
func (uc *DeviceUseCase) Disable(ctx context.Context, deviceID, operator string) error {
	if err := uc.deviceRepo.SetActive(ctx, deviceID, false); err != nil {
		return err
	}
	uc.auditRepo.Create(ctx, &domain.AuditLog{
		ActorID:      operator,
		Action:       string(domain.AuditActionDeviceDisable),
		ResourceType: "device",
		ResourceID:   deviceID,
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    time.Now().UTC(),
	})
	return nil
}

// Authenticate verifies a device credential. Failures are uniform so a
// caller cannot distinguish a wrong token from a missing device.
func (uc *DeviceUseCase) Authenticate(ctx context.Context, deviceID, token string) (*domain.Device, error) {
	device, err := uc.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, domain.ErrDeviceUnauthorized
	}
	if !device.Active {
		return nil, domain.ErrDeviceUnauthorized
	}
	hash := uc.tokens.Hash(token)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(device.TokenHash)) != 1 {
		return nil, domain.ErrDeviceUnauthorized
	}

	now := time.Now().UTC()
	if err := uc.deviceRepo.TouchLastSeen(ctx, device.ID, now); err != nil {
		uc.logger.Debug().Err(err).Str("device_id", device.ID).Msg("last_seen update failed")
	}
	return device, nil
}

// Heartbeat records a device liveness report.
func (uc *DeviceUseCase) Heartbeat(ctx context.Context, hb *domain.Heartbeat) error {
	if hb.SentAt.IsZero() {
		hb.SentAt = time.Now().UTC()
	}
	return uc.deviceRepo.RecordHeartbeat(ctx, hb)
}

// List returns the devices of a company.
func (uc *DeviceUseCase) List(ctx context.Context, companyID string) ([]*domain.Device, error) {
	return uc.deviceRepo.List(ctx, companyID)
}
