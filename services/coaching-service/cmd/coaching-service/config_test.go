package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideacademy/coachbook/libs/auth"
	"github.com/strideacademy/coachbook/libs/httpx"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/coachbook")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "9090", cfg.GRPCPort)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.EnforceAvailability)
	assert.Equal(t, "coaching-service", cfg.OTel.ServiceName)
	assert.True(t, cfg.OTel.Enabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/coachbook")
	t.Setenv("JWKS_URL", "https://id.example.com/.well-known/jwks.json")
	t.Setenv("BOOKING_ENFORCE_AVAILABILITY", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SERVICE_NAME", "coaching-canary")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.EnforceAvailability)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.OTel.Enabled)
	assert.Equal(t, "coaching-canary", cfg.OTel.ServiceName)
}

func TestLoadConfigRejects(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/coachbook")
		t.Setenv("JWT_SECRET", "")
		t.Setenv("JWKS_URL", "")
		_, err := loadConfig()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})
	t.Run("bad port", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/coachbook")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("PORT", "http")
		_, err := loadConfig()
		assert.ErrorContains(t, err, "PORT")
	})
	t.Run("missing database", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET", "s3cret")
		_, err := loadConfig()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})
}

func TestAuthenticateLimitsVerifiedCallers(t *testing.T) {
	const secret = "rate-secret"
	verifier := auth.NewVerifier(secret, nil)
	limit := httpx.NewRateLimiter(1, time.Minute, rateKey).Middleware()
	h := authenticate(verifier, limit)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(subject string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		if subject != "" {
			tok, err := auth.SignHS256(auth.Claims{
				Role: auth.RoleGuardian,
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   subject,
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			}, secret)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusNoContent, call("user-1"))
	assert.Equal(t, http.StatusTooManyRequests, call("user-1"))
	assert.Equal(t, http.StatusNoContent, call("user-2"))
}

func TestRateKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	claims := &auth.Claims{Role: auth.RoleGuardian, RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	assert.Equal(t, "sub:user-1", rateKey(req))
}
