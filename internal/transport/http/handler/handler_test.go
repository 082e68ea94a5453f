package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phone-verify/internal/application/verification"
	"github.com/phone-verify/internal/domain"
	jwtinfra "github.com/phone-verify/internal/infrastructure/jwt"
	"github.com/phone-verify/internal/pkg/phone"
	"github.com/phone-verify/internal/pkg/validate"
	"github.com/phone-verify/internal/transport/http/middleware"
)

func TestMain(m *testing.M) {
	if err := validate.RegisterPhone(phone.NewNormalizer("EG", 0).IsValid); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// --- mock ---

type mockVerificationSvc struct{ mock.Mock }

func (m *mockVerificationSvc) RequestCode(ctx context.Context, req verification.RequestCodeRequest) (*verification.RequestCodeResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*verification.RequestCodeResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVerificationSvc) ConfirmCode(ctx context.Context, req verification.ConfirmCodeRequest) (*verification.ConfirmResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*verification.ConfirmResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVerificationSvc) ValidateSession(ctx context.Context, userID string) (*domain.SessionStatus, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*domain.SessionStatus); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVerificationSvc) Clear(ctx context.Context, target string) (int, error) {
	args := m.Called(ctx, target)
	return args.Int(0), args.Error(1)
}

func (m *mockVerificationSvc) SweepExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockVerificationSvc) ChannelStatus() domain.ChannelStatus {
	return m.Called().Get(0).(domain.ChannelStatus)
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

// --- request ---

func TestRequest_Accepted(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("RequestCode", mock.Anything, verification.RequestCodeRequest{Phone: "01012345678"}).
		Return(&verification.RequestCodeResult{Phone: "+201012345678", Channel: domain.ChannelWhatsApp, ExpiresIn: 600}, nil)

	rr := post(NewVerificationHandler(svc).Request, `{"phone":"01012345678"}`)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"phone":"+201012345678","channel":"whatsapp","expires_in":600}`, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "code")
	svc.AssertExpectations(t)
}

func TestRequest_InvalidPhone_FailsValidation(t *testing.T) {
	svc := &mockVerificationSvc{}

	rr := post(NewVerificationHandler(svc).Request, `{"phone":"123"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "RequestCode", mock.Anything, mock.Anything)
}

func TestRequest_BadBody(t *testing.T) {
	rr := post(NewVerificationHandler(&mockVerificationSvc{}).Request, `{`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRequest_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"too soon", domain.ErrTooSoon, http.StatusTooManyRequests},
		{"delivery failed", domain.ErrDeliveryFailed, http.StatusBadGateway},
		{"invalid phone", domain.ErrInvalidPhone, http.StatusBadRequest},
		{"store", errors.Join(domain.ErrStorePersistence, errors.New("dynamo: timeout")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockVerificationSvc{}
			svc.On("RequestCode", mock.Anything, mock.Anything).Return(nil, tc.err)

			rr := post(NewVerificationHandler(svc).Request, `{"phone":"01012345678"}`)

			assert.Equal(t, tc.want, rr.Code)
			assert.NotContains(t, rr.Body.String(), "dynamo")
		})
	}
}

// --- confirm ---

func TestConfirm_Valid(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("ConfirmCode", mock.Anything, verification.ConfirmCodeRequest{Phone: "+201012345678", Code: "123456"}).
		Return(&verification.ConfirmResult{Valid: true, Outcome: domain.ConsumeAccepted}, nil)

	rr := post(NewVerificationHandler(svc).Confirm, `{"phone":"+201012345678","code":"123456"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"valid":true}`, rr.Body.String())
}

func TestConfirm_NegativeOutcomesShareOneMessage(t *testing.T) {
	for _, outcome := range []domain.ConsumeResult{
		domain.ConsumeNotFound, domain.ConsumeExpired, domain.ConsumeMismatch, domain.ConsumeTooManyAttempts,
	} {
		t.Run(string(outcome), func(t *testing.T) {
			svc := &mockVerificationSvc{}
			svc.On("ConfirmCode", mock.Anything, mock.Anything).
				Return(&verification.ConfirmResult{Valid: false, Outcome: outcome}, nil)

			rr := post(NewVerificationHandler(svc).Confirm, `{"phone":"+201012345678","code":"000000"}`)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.JSONEq(t, `{"error":"invalid or expired code"}`, rr.Body.String())
		})
	}
}

func TestConfirm_MissingCode(t *testing.T) {
	svc := &mockVerificationSvc{}
	rr := post(NewVerificationHandler(svc).Confirm, `{"phone":"+201012345678"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "ConfirmCode", mock.Anything, mock.Anything)
}

// --- sessions ---

func TestValidateSession(t *testing.T) {
	cases := []struct {
		name     string
		status   *domain.SessionStatus
		err      error
		wantCode int
		wantBody string
	}{
		{"active", &domain.SessionStatus{Valid: true}, nil, http.StatusOK, `{"valid":true}`},
		{"deactivated", &domain.SessionStatus{Valid: false, Reason: domain.ReasonDeactivated}, nil, http.StatusOK, `{"valid":false,"reason":"deactivated"}`},
		{"unknown user", nil, domain.ErrNotFound, http.StatusNotFound, `{"error":"not found"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockVerificationSvc{}
			svc.On("ValidateSession", mock.Anything, "u1").Return(tc.status, tc.err)

			ctx := middleware.WithClaims(context.Background(), &jwtinfra.Claims{UserID: "u1"})
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			rr := httptest.NewRecorder()
			NewSessionHandler(svc).Validate(rr, req)

			assert.Equal(t, tc.wantCode, rr.Code)
			assert.JSONEq(t, tc.wantBody, rr.Body.String())
		})
	}
}

func TestValidateSession_NoClaims(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	NewSessionHandler(&mockVerificationSvc{}).Validate(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// --- admin ---

func TestAdminClear(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("Clear", mock.Anything, "ALL").Return(7, nil)

	req := httptest.NewRequest(http.MethodDelete, "/?phone=ALL", nil)
	rr := httptest.NewRecorder()
	NewAdminHandler(svc).Clear(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"deleted":7}`, rr.Body.String())
}

func TestAdminClear_MissingTarget(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("Clear", mock.Anything, "").Return(0, domain.ErrBadRequest)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rr := httptest.NewRecorder()
	NewAdminHandler(svc).Clear(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminDeliveryStatus(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("ChannelStatus").Return(domain.ChannelStatus{
		WhatsApp:         domain.ChannelConfig{Configured: true, Sender: "1234…", TokenPrefix: "EAAB…"},
		SimulatedAllowed: true,
		Preferred:        domain.ChannelWhatsApp,
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	NewAdminHandler(svc).DeliveryStatus(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"preferred":"whatsapp"`)
	assert.Contains(t, rr.Body.String(), `"token_prefix":"EAAB…"`)
}

// --- health ---

func TestPing(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/health-check/{action}", NewHealthHandler().Ping)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
