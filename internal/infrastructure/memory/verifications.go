// Package memory holds single-process implementations of the stores, used in
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/phone-verify/internal/domain"
	"github.com/phone-verify/internal/pkg/otp"
)

// VerificationStore keeps one record per phone. The mutex is the per-phone
// critical section; a consumed record stays in place until superseded or swept.
type VerificationStore struct {
	mu      sync.Mutex
	records map[string]domain.VerificationRecord
}

func NewVerificationStore() *VerificationStore {
	return &VerificationStore{records: make(map[string]domain.VerificationRecord)}
}

func (s *VerificationStore) Issue(_ context.Context, rec *domain.VerificationRecord) error {
	stored := *rec
	stored.Code = ""
	stored.Attempts = 0
	stored.ConsumedAt = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.records[rec.Phone]; ok {
		stored.Version = prev.Version + 1
	}
	s.records[rec.Phone] = stored
	return nil
}

func (s *VerificationStore) Consume(_ context.Context, phone, code string, now time.Time, maxAttempts int) (domain.ConsumeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[phone]
	if !ok {
		return domain.ConsumeNotFound, nil
	}
	result := rec.Evaluate(now, maxAttempts, func(hash string) bool { return otp.Matches(hash, code) })
	switch result {
	case domain.ConsumeMismatch:
		rec.Attempts++
	case domain.ConsumeAccepted:
		t := now
		rec.ConsumedAt = &t
	default:
		return result, nil
	}
	rec.Version++
	s.records[phone] = rec
	return result, nil
}

func (s *VerificationStore) Clear(_ context.Context, phones []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range phones {
		if _, ok := s.records[p]; ok {
			delete(s.records, p)
			n++
		}
	}
	return n, nil
}

func (s *VerificationStore) ClearAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = make(map[string]domain.VerificationRecord)
	return n, nil
}

func (s *VerificationStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p, rec := range s.records {
		if rec.ExpiresAt.Before(now) {
			delete(s.records, p)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the record stored for phone.
func (s *VerificationStore) Get(phone string) (domain.VerificationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	return rec, ok
}
