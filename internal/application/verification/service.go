// Package verification orchestrates issuing, delivering and confirming phone codes.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phone-verify/internal/domain"
	"github.com/phone-verify/internal/infrastructure/metrics"
	"github.com/phone-verify/internal/pkg/id"
	"github.com/phone-verify/internal/pkg/otp"
	"github.com/phone-verify/internal/pkg/phone"
)

// ClearAllTarget is the admin clear target that deletes every record and
// releases every resend cooldown.
const ClearAllTarget = "ALL"

type RequestCodeRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
}

type RequestCodeResult struct {
	Phone     string         `json:"phone"`
	Channel   domain.Channel `json:"channel"`
	ExpiresIn int            `json:"expires_in"`
}

type ConfirmCodeRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
	Code  string `json:"code" validate:"required,max=16"`
}

// ConfirmResult carries the internal outcome; callers outside the service
// should only surface Valid.
type ConfirmResult struct {
	Valid   bool                 `json:"valid"`
	Outcome domain.ConsumeResult `json:"-"`
}

type Service interface {
	RequestCode(ctx context.Context, req RequestCodeRequest) (*RequestCodeResult, error)
	ConfirmCode(ctx context.Context, req ConfirmCodeRequest) (*ConfirmResult, error)
	ValidateSession(ctx context.Context, userID string) (*domain.SessionStatus, error)
	Clear(ctx context.Context, target string) (int, error)
	SweepExpired(ctx context.Context) (int, error)
	ChannelStatus() domain.ChannelStatus
}

// Deliverer is the delivery router as seen by the service.
type Deliverer interface {
	Send(ctx context.Context, phone, code string) (domain.DeliveryResult, error)
	Status() domain.ChannelStatus
}

// Deps wires the service. Cooldown, Metrics, Now and NewCode are optional.
type Deps struct {
	Store      domain.VerificationStore
	Users      domain.UserStore
	Router     Deliverer
	Cooldown   domain.Cooldown
	Normalizer *phone.Normalizer
	Metrics    *metrics.Recorder

	CodeTTL        time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	HashCost       int

	Now     func() time.Time
	NewCode func() (string, error)
}

type service struct {
	Deps
}

func NewService(deps Deps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewCode == nil {
		deps.NewCode = otp.Generate
	}
	if deps.CodeTTL <= 0 {
		deps.CodeTTL = 10 * time.Minute
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 5
	}
	return &service{Deps: deps}
}

func (s *service) RequestCode(ctx context.Context, req RequestCodeRequest) (*RequestCodeResult, error) {
	p, err := s.Normalizer.Normalize(req.Phone)
	if err != nil {
		s.Metrics.CodeRequested("invalid_phone")
		return nil, err
	}

	if s.Cooldown != nil {
		if err := s.Cooldown.Acquire(ctx, p, s.ResendCooldown); err != nil {
			if errors.Is(err, domain.ErrTooSoon) {
				s.Metrics.CodeRequested("too_soon")
			}
			return nil, err
		}
	}

	code, err := s.NewCode()
	if err != nil {
		s.releaseCooldown(ctx, p)
		return nil, err
	}
	hash, err := otp.Hash(code, s.HashCost)
	if err != nil {
		s.releaseCooldown(ctx, p)
		return nil, err
	}

	now := s.Now()
	rec := &domain.VerificationRecord{
		ID:        id.At(now),
		Phone:     p,
		Code:      code,
		CodeHash:  hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.CodeTTL),
	}
	if err := s.Store.Issue(ctx, rec); err != nil {
		s.releaseCooldown(ctx, p)
		s.Metrics.CodeRequested("store_error")
		return nil, fmt.Errorf("issue code: %w", err)
	}

	res, err := s.Router.Send(ctx, p, code)
	if err != nil {
		// The record stays; a resend after fixing delivery supersedes it.
		s.releaseCooldown(ctx, p)
		s.Metrics.CodeRequested("delivery_failed")
		slog.Error("code delivery failed", "phone", phone.Mask(p), "err", err)
		return nil, err
	}

	s.Metrics.CodeRequested("ok")
	slog.Info("verification code issued", "phone", phone.Mask(p), "channel", res.Channel)
	return &RequestCodeResult{
		Phone:     p,
		Channel:   res.Channel,
		ExpiresIn: int(s.CodeTTL.Seconds()),
	}, nil
}

func (s *service) ConfirmCode(ctx context.Context, req ConfirmCodeRequest) (*ConfirmResult, error) {
	p, err := s.Normalizer.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}

	outcome, err := s.Store.Consume(ctx, p, strings.TrimSpace(req.Code), s.Now(), s.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	s.Metrics.Confirmed(string(outcome))

	if outcome != domain.ConsumeAccepted {
		slog.Info("verification code rejected", "phone", phone.Mask(p), "outcome", outcome)
		return &ConfirmResult{Valid: false, Outcome: outcome}, nil
	}
	return &ConfirmResult{Valid: true, Outcome: outcome}, nil
}

func (s *service) ValidateSession(ctx context.Context, userID string) (*domain.SessionStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id required: %w", domain.ErrBadRequest)
	}
	u, err := s.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return &domain.SessionStatus{Valid: false, Reason: domain.ReasonDeactivated}, nil
	}
	return &domain.SessionStatus{Valid: true}, nil
}

func (s *service) Clear(ctx context.Context, target string) (int, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, fmt.Errorf("phone or %s required: %w", ClearAllTarget, domain.ErrBadRequest)
	}
	if strings.EqualFold(target, ClearAllTarget) {
		n, err := s.Store.ClearAll(ctx)
		if err != nil {
			return 0, err
		}
		released := 0
		if s.Cooldown != nil {
			if released, err = s.Cooldown.ReleaseAll(ctx); err != nil {
				slog.Warn("could not release resend cooldowns", "err", err)
			}
		}
		slog.Warn("all verification records cleared", "deleted", n, "cooldowns_released", released)
		return n, nil
	}

	variants := s.Normalizer.LegacyVariants(target)
	n, err := s.Store.Clear(ctx, variants)
	if err != nil {
		return 0, err
	}
	if s.Cooldown != nil {
		for _, v := range variants {
			_ = s.Cooldown.Release(ctx, v)
		}
	}
	slog.Info("verification records cleared", "phone", phone.Mask(target), "variants", len(variants), "deleted", n)
	return n, nil
}

func (s *service) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.Store.SweepExpired(ctx, s.Now())
	if err != nil {
		return 0, err
	}
	s.Metrics.Swept(n)
	return n, nil
}

func (s *service) ChannelStatus() domain.ChannelStatus {
	return s.Router.Status()
}

func (s *service) releaseCooldown(ctx context.Context, p string) {
	if s.Cooldown == nil {
		return
	}
	if err := s.Cooldown.Release(ctx, p); err != nil {
		slog.Warn("could not release resend cooldown", "phone", phone.Mask(p), "err", err)
	}
}
