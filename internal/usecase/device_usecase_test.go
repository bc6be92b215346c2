package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
	"github.com/retailsync/ledger/internal/usecase/mocks"
)

func newDeviceUseCase() (*usecase.DeviceUseCase, *mocks.MockDeviceRepository) {
	repo := mocks.NewMockDeviceRepository()
	uc := usecase.NewDeviceUseCase(
		repo,
		mocks.NewMockTokenSource(),
		mocks.NewMockIDGenerator(),
		mocks.NewMockAuditRepository(),
		zerolog.Nop(),
	)
	return uc, repo
}

func TestDeviceRegisterAndAuthenticate(t *testing.T) {
	uc, _ := newDeviceUseCase()
	ctx := context.Background()

	out, err := uc.Register(ctx, usecase.RegisterInput{CompanyID: "co-1", Name: "till-1", Operator: "ops"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if out.Token == "" {
		t.Fatal("expected one-time raw token")
	}
	if out.Device.TokenHash == out.Token {
		t.Fatal("raw token must not be stored")
	}

	dev, err := uc.Authenticate(ctx, out.Device.ID, out.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if dev.CompanyID != "co-1" {
		t.Fatalf("company = %s", dev.CompanyID)
	}
	if dev.LastSeenAt == nil {
		t.Fatal("last_seen should be touched on auth")
	}

	if _, err := uc.Authenticate(ctx, out.Device.ID, "wrong"); !errors.Is(err, domain.ErrDeviceUnauthorized) {
		t.Fatalf("wrong token: %v", err)
	}
	if _, err := uc.Authenticate(ctx, "nope", out.Token); !errors.Is(err, domain.ErrDeviceUnauthorized) {
		t.Fatalf("unknown device: %v", err)
	}
}

func TestDeviceResetTokenInvalidatesOld(t *testing.T) {
	uc, _ := newDeviceUseCase()
	ctx := context.Background()

	out, err := uc.Register(ctx, usecase.RegisterInput{CompanyID: "co-1", Name: "till-1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	reset, err := uc.ResetToken(ctx, out.Device.ID, "ops")
	if err != nil {
		t.Fatalf("ResetToken: %v", err)
	}
	if _, err := uc.Authenticate(ctx, out.Device.ID, reset.Token); err != nil {
		t.Fatalf("new token rejected: %v", err)
	}
}

func TestDeviceDisableBlocksAuth(t *testing.T) {
	uc, _ := newDeviceUseCase()
	ctx := context.Background()

	out, _ := uc.Register(ctx, usecase.RegisterInput{CompanyID: "co-1", Name: "till-1"})
	if err := uc.Disable(ctx, out.Device.ID, "ops"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if _, err := uc.Authenticate(ctx, out.Device.ID, out.Token); !errors.Is(err, domain.ErrDeviceUnauthorized) {
		t.Fatalf("disabled device authenticated: %v", err)
	}
}
