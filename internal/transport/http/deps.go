package http

import (
	"net/http"

	"github.com/phone-verify/internal/application/verification"
	"github.com/phone-verify/internal/transport/http/middleware"
)

// Deps holds everything the router mounts. Tokens and Metrics are optional:
// without Tokens session validation is not served and admin routes skip the
// role check; without Metrics /metrics is not mounted.
type Deps struct {
	Verification verification.Service
	Tokens       middleware.TokenVerifier
	Metrics      http.Handler
}
