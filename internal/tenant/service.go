package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/mailspool/internal/domain"
)

// Sentinel errors for the tenant service layer.
var (
	ErrNoProfile      = errors.New("tenant has no profile")
	ErrInvalidProfile = errors.New("invalid profile")
)

// Service manages tenant sending profiles.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a tenant service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ProfileInput carries the caller-settable profile fields. Zero-valued
// fields fall back to defaults on creation.
type ProfileInput struct {
	RelayHost     string
	RelayPort     int
	RelayUsername string
	RelayPassword string
	Encryption    domain.Encryption
	DirectSend    bool
	FromAddress   string
	HourlyCap     int
}

// EnsureProfile provisions a profile for the tenant, applying defaults for
// unset fields: submission port 587, STARTTLS, and the standard hourly cap.
// An existing profile is returned unchanged.
func (s *Service) EnsureProfile(ctx context.Context, tenantID string, in ProfileInput) (*domain.TenantProfile, error) {
	existing, err := s.repo.Profile(ctx, tenantID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNoProfile) {
		return nil, err
	}

	if err := validate(&in); err != nil {
		return nil, err
	}

	now := s.now()
	profile := &domain.TenantProfile{
		TenantID:      tenantID,
		RelayHost:     in.RelayHost,
		RelayPort:     in.RelayPort,
		RelayUsername: in.RelayUsername,
		RelayPassword: in.RelayPassword,
		Encryption:    in.Encryption,
		DirectSend:    in.DirectSend,
		FromAddress:   in.FromAddress,
		HourlyCap:     in.HourlyCap,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if profile.RelayPort == 0 {
		profile.RelayPort = 587
	}
	if profile.Encryption == "" {
		profile.Encryption = domain.EncryptionSTARTTLS
	}
	if profile.HourlyCap == 0 {
		profile.HourlyCap = domain.DefaultHourlyCap
	}

	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile for tenant %s: %w", tenantID, err)
	}
	return profile, nil
}

// UpdateProfile overwrites an existing profile's settings. Unlike
// EnsureProfile it applies the input verbatim, except that the cap and
// port keep their previous values when left zero.
func (s *Service) UpdateProfile(ctx context.Context, tenantID string, in ProfileInput) (*domain.TenantProfile, error) {
	profile, err := s.repo.Profile(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if err := validate(&in); err != nil {
		return nil, err
	}

	if in.RelayPort == 0 {
		in.RelayPort = profile.RelayPort
	}
	if in.HourlyCap == 0 {
		in.HourlyCap = profile.HourlyCap
	}
	if in.Encryption == "" {
		in.Encryption = profile.Encryption
	}

	profile.RelayHost = in.RelayHost
	profile.RelayPort = in.RelayPort
	profile.RelayUsername = in.RelayUsername
	profile.RelayPassword = in.RelayPassword
	profile.Encryption = in.Encryption
	profile.DirectSend = in.DirectSend
	profile.FromAddress = in.FromAddress
	profile.HourlyCap = in.HourlyCap
	profile.UpdatedAt = s.now()

	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile for tenant %s: %w", tenantID, err)
	}
	return profile, nil
}

// Profile returns the tenant's profile.
func (s *Service) Profile(ctx context.Context, tenantID string) (*domain.TenantProfile, error) {
	return s.repo.Profile(ctx, tenantID)
}

// Summary returns the tenant's dashboard counters.
func (s *Service) Summary(ctx context.Context, tenantID string) (*domain.TenantSummary, error) {
	return s.repo.Summary(ctx, tenantID)
}

func validate(in *ProfileInput) error {
	if in.FromAddress == "" || !strings.Contains(in.FromAddress, "@") {
		return fmt.Errorf("%w: from address %q", ErrInvalidProfile, in.FromAddress)
	}
	if !in.DirectSend && in.RelayHost == "" {
		return fmt.Errorf("%w: relay host required unless direct sending is enabled", ErrInvalidProfile)
	}
	if in.HourlyCap < 0 {
		return fmt.Errorf("%w: hourly cap must not be negative", ErrInvalidProfile)
	}
	switch in.Encryption {
	case "", domain.EncryptionSTARTTLS, domain.EncryptionImplicit, domain.EncryptionNone:
	default:
		return fmt.Errorf("%w: unknown encryption mode %q", ErrInvalidProfile, in.Encryption)
	}
	return nil
}
