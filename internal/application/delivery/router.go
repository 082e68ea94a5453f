// Package delivery picks the channel a verification code goes out on.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phone-verify/internal/config"
	"github.com/phone-verify/internal/domain"
	"github.com/phone-verify/internal/infrastructure/metrics"
	"github.com/phone-verify/internal/pkg/phone"
)

const defaultTimeout = 10 * time.Second

// WhatsAppSender delivers the code as a pre-approved template.
type WhatsAppSender interface {
	SendTemplate(ctx context.Context, to, code string) error
	Configured() bool
}

// SMSSender delivers a plain-text body.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
	Configured() bool
}

// Config is the router policy plus the masked channel descriptors shown by Status.
type Config struct {
	Timeout        time.Duration
	AllowSimulated bool
	CodeTTL        time.Duration
	WhatsApp       domain.ChannelConfig
	SMS            domain.ChannelConfig
	Metrics        *metrics.Recorder
}

// ConfigFrom derives the router config from the loaded delivery settings.
// Secrets never leave this function unmasked.
func ConfigFrom(d config.Delivery, codeTTL time.Duration, rec *metrics.Recorder) Config {
	smsSender := d.SMSSenderNumber
	smsToken := maskSecret(d.SMSAuthToken)
	if d.SMSProvider == config.SMSProviderSNS {
		smsSender = "aws-sns:" + d.SNSRegion
		smsToken = ""
	}
	return Config{
		Timeout:        d.ChannelTimeout,
		AllowSimulated: d.AllowSimulated,
		CodeTTL:        codeTTL,
		WhatsApp: domain.ChannelConfig{
			Provider:    "whatsapp-cloud",
			Sender:      d.WhatsAppPhoneNumberID,
			Template:    d.WhatsAppTemplateName,
			TokenPrefix: maskSecret(d.WhatsAppAccessToken),
		},
		SMS: domain.ChannelConfig{
			Provider:    d.SMSProvider,
			Sender:      smsSender,
			TokenPrefix: smsToken,
		},
		Metrics: rec,
	}
}

// Router tries WhatsApp, then SMS, then (when allowed) simulated delivery.
type Router struct {
	cfg Config
	wa  WhatsAppSender
	sms SMSSender
}

// NewRouter accepts nil senders; a nil sender is treated as unconfigured.
func NewRouter(cfg Config, wa WhatsAppSender, sms SMSSender) *Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Router{cfg: cfg, wa: wa, sms: sms}
}

func (r *Router) whatsAppConfigured() bool { return r.wa != nil && r.wa.Configured() }
func (r *Router) smsConfigured() bool      { return r.sms != nil && r.sms.Configured() }

// Send delivers code to phone. A channel failure only moves on to the next
// channel; ErrDeliveryFailed is returned when nothing accepted the code.
func (r *Router) Send(ctx context.Context, to, code string) (domain.DeliveryResult, error) {
	var res domain.DeliveryResult

	if r.whatsAppConfigured() {
		err := r.attempt(ctx, domain.ChannelWhatsApp, func(ctx context.Context) error {
			return r.wa.SendTemplate(ctx, to, code)
		})
		res.Attempts = append(res.Attempts, newAttempt(domain.ChannelWhatsApp, true, err))
		if err == nil {
			return r.done(res, domain.ChannelWhatsApp), nil
		}
		slog.Warn("whatsapp delivery failed, falling back", "phone", phone.Mask(to), "err", err)
	} else {
		res.Attempts = append(res.Attempts, r.missing(domain.ChannelWhatsApp))
	}

	if r.smsConfigured() {
		body := Message(code, r.cfg.CodeTTL)
		err := r.attempt(ctx, domain.ChannelSMS, func(ctx context.Context) error {
			return r.sms.SendSMS(ctx, to, body)
		})
		res.Attempts = append(res.Attempts, newAttempt(domain.ChannelSMS, true, err))
		if err == nil {
			return r.done(res, domain.ChannelSMS), nil
		}
		slog.Warn("sms delivery failed", "phone", phone.Mask(to), "err", err)
	} else {
		res.Attempts = append(res.Attempts, r.missing(domain.ChannelSMS))
	}

	if r.cfg.AllowSimulated {
		// Development only: the code is written to the log instead of being sent.
		slog.Info("simulated delivery", "channel", domain.ChannelSimulated, "phone", to, "code", code)
		r.cfg.Metrics.Delivery(string(domain.ChannelSimulated), "ok", 0)
		res.Attempts = append(res.Attempts, domain.DeliveryAttempt{Channel: domain.ChannelSimulated, Configured: true})
		return r.done(res, domain.ChannelSimulated), nil
	}

	return res, fmt.Errorf("%w: %s", domain.ErrDeliveryFailed, summarize(res.Attempts))
}

func (r *Router) attempt(ctx context.Context, ch domain.Channel, send func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := send(ctx)
	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
	}
	r.cfg.Metrics.Delivery(string(ch), result, time.Since(start))
	return err
}

func (r *Router) missing(ch domain.Channel) domain.DeliveryAttempt {
	slog.Debug("delivery channel skipped", "channel", ch, "err", domain.ErrDeliveryConfigurationMissing)
	r.cfg.Metrics.Delivery(string(ch), "unconfigured", 0)
	return newAttempt(ch, false, domain.ErrDeliveryConfigurationMissing)
}

func (r *Router) done(res domain.DeliveryResult, ch domain.Channel) domain.DeliveryResult {
	res.Channel = ch
	res.OK = true
	return res
}

// Status reports channel readiness without sending anything.
func (r *Router) Status() domain.ChannelStatus {
	st := domain.ChannelStatus{
		WhatsApp:         r.cfg.WhatsApp,
		SMS:              r.cfg.SMS,
		SimulatedAllowed: r.cfg.AllowSimulated,
	}
	st.WhatsApp.Configured = r.whatsAppConfigured()
	st.SMS.Configured = r.smsConfigured()
	switch {
	case st.WhatsApp.Configured:
		st.Preferred = domain.ChannelWhatsApp
	case st.SMS.Configured:
		st.Preferred = domain.ChannelSMS
	case st.SimulatedAllowed:
		st.Preferred = domain.ChannelSimulated
	}
	return st
}

// CheckStartup logs an error when a production deployment cannot deliver codes.
func (r *Router) CheckStartup(development bool) {
	if development || r.whatsAppConfigured() || r.smsConfigured() {
		return
	}
	slog.Error("no delivery channel configured; verification codes cannot be sent",
		"simulated_allowed", r.cfg.AllowSimulated)
}

// Message is the SMS body for code.
func Message(code string, ttl time.Duration) string {
	minutes := int(ttl.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes)
}

func newAttempt(ch domain.Channel, configured bool, err error) domain.DeliveryAttempt {
	a := domain.DeliveryAttempt{Channel: ch, Configured: configured}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

func summarize(attempts []domain.DeliveryAttempt) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Channel, a.Error))
	}
	return strings.Join(parts, "; ")
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "…"
	}
	return s[:4] + "…"
}
