package domain

import "time"

// VerificationRecord is one outstanding one-time code for a normalized phone.
// PK: phone. ExpiresTTL mirrors ExpiresAt as Unix seconds for DynamoDB TTL.
type VerificationRecord struct {
	ID         string     `json:"id" dynamodbav:"verification_id"`
	Phone      string     `json:"phone" dynamodbav:"phone"`
	Code       string     `json:"-" dynamodbav:"-"` // plain code, only held in memory between issue and send
	CodeHash   string     `json:"-" dynamodbav:"code_hash"`
	IssuedAt   time.Time  `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at" dynamodbav:"expires_at"`
	ExpiresTTL int64      `json:"-" dynamodbav:"expires_ttl"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty" dynamodbav:"consumed_at,omitempty"`
	Attempts   int        `json:"attempts" dynamodbav:"attempts"`
	Version    int64      `json:"-" dynamodbav:"version"`
}

// Consumed reports whether the record has already been accepted once.
func (r *VerificationRecord) Consumed() bool { return r.ConsumedAt != nil }

// Expired reports whether now is past the expiry instant.
func (r *VerificationRecord) Expired(now time.Time) bool { return now.After(r.ExpiresAt) }

// Active is true while the code can still be confirmed.
func (r *VerificationRecord) Active(now time.Time) bool {
	return !r.Consumed() && !r.Expired(now)
}

// Evaluate decides the outcome of a confirmation attempt against r.
// matches is only called when the record is still collectable. The caller persists
// the mutation implied by the result (attempts++ on Mismatch, ConsumedAt on Accepted).
func (r *VerificationRecord) Evaluate(now time.Time, maxAttempts int, matches func(hash string) bool) ConsumeResult {
	switch {
	case r == nil || r.Consumed():
		return ConsumeNotFound
	case r.Expired(now):
		return ConsumeExpired
	case maxAttempts > 0 && r.Attempts >= maxAttempts:
		return ConsumeTooManyAttempts
	case !matches(r.CodeHash):
		return ConsumeMismatch
	}
	return ConsumeAccepted
}

// ConsumeResult is the outcome of a confirmation attempt. Every value except
// ConsumeAccepted is an expected negative outcome, not a fault.
type ConsumeResult string

const (
	ConsumeAccepted        ConsumeResult = "accepted"
	ConsumeNotFound        ConsumeResult = "not_found"
	ConsumeExpired         ConsumeResult = "expired"
	ConsumeMismatch        ConsumeResult = "mismatch"
	ConsumeTooManyAttempts ConsumeResult = "too_many_attempts"
)

// Channel names a delivery path for a code.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelSMS       Channel = "sms"
	ChannelSimulated Channel = "simulated"
)

// DeliveryAttempt records one channel tried while sending a code.
type DeliveryAttempt struct {
	Channel    Channel `json:"channel"`
	Configured bool    `json:"configured"`
	Error      string  `json:"error,omitempty"`
}

// DeliveryResult is what the delivery router reports for one issuance.
type DeliveryResult struct {
	Channel  Channel           `json:"channel"`
	OK       bool              `json:"ok"`
	Attempts []DeliveryAttempt `json:"attempts,omitempty"`
}

// ChannelConfig describes one channel's configuration with secrets masked.
type ChannelConfig struct {
	Configured  bool   `json:"configured"`
	Provider    string `json:"provider,omitempty"`
	Sender      string `json:"sender,omitempty"`
	Template    string `json:"template,omitempty"`
	TokenPrefix string `json:"token_prefix,omitempty"`
}

// ChannelStatus is derived, never persisted. Preferred is the channel the router would try first.
type ChannelStatus struct {
	WhatsApp         ChannelConfig `json:"whatsapp"`
	SMS              ChannelConfig `json:"sms"`
	SimulatedAllowed bool          `json:"simulated_allowed"`
	Preferred        Channel       `json:"preferred"`
}
