package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/accesshub"
	"github.com/MrEthical07/accesshub/middleware"
)

const maxBodyBytes = 64 << 10

// Engine is the slice of *accesshub.Engine the HTTP surface drives.
type Engine interface {
	Register(ctx context.Context, req accesshub.RegisterRequest) (accesshub.RegisterResult, error)
	Login(ctx context.Context, req accesshub.LoginRequest) (accesshub.LoginResult, error)
	VerifyOTP(ctx context.Context, userID, code string, meta accesshub.ClientMeta) (accesshub.LoginResult, error)
	ResendOTP(ctx context.Context, userID string) (accesshub.OTPChallenge, error)
	Refresh(ctx context.Context, userID, refreshToken string, meta accesshub.ClientMeta) (accesshub.RefreshResult, error)
	LogoutSession(ctx context.Context, userID, refreshToken, accessToken string) error
	LogoutAll(ctx context.Context, userID string) (accesshub.LogoutAllResult, error)
	WhoAmI(ctx context.Context, userID string) (accesshub.Identity, error)
	SecurityEvents(ctx context.Context, userID string) ([]accesshub.SecurityEvent, error)
	VerifyAccessToken(ctx context.Context, token string) (accesshub.AuthResult, error)
	Health(ctx context.Context) accesshub.HealthStatus
}

// Handler serves the /auth endpoints.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// NewHandler returns a handler bound to engine.
func NewHandler(engine Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// --- Request DTOs ---

type verifyOTPRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

type resendOTPRequest struct {
	UserID string `json:"userId"`
}

type refreshRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

// --- Response DTOs ---

type tokensResponse struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
	RefreshToken    string    `json:"refreshToken,omitempty"`
	TokenType       string    `json:"tokenType"`
}

type registerResponse struct {
	User            accesshub.Identity `json:"user"`
	AccessToken     string             `json:"accessToken"`
	AccessExpiresAt time.Time          `json:"accessExpiresAt"`
}

type loginResponse struct {
	Status string              `json:"status"`
	UserID string              `json:"userId"`
	User   *accesshub.Identity `json:"user,omitempty"`
	Tokens *tokensResponse     `json:"tokens,omitempty"`
}

type otpChallengeResponse struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type logoutAllResponse struct {
	RefreshRevoked int `json:"refreshRevoked"`
	AccessRevoked  int `json:"accessRevoked"`
}

type healthResponse struct {
	Status       string `json:"status"`
	RedisLatency string `json:"redisLatency,omitempty"`
}

func toTokens(p accesshub.TokenPair) *tokensResponse {
	return &tokensResponse{
		AccessToken:     p.AccessToken,
		AccessExpiresAt: p.AccessExpiresAt,
		RefreshToken:    p.RefreshToken,
		TokenType:       "Bearer",
	}
}

func toLogin(res accesshub.LoginResult) loginResponse {
	out := loginResponse{Status: res.State.String(), UserID: res.UserID}
	if res.State == accesshub.LoginAuthenticated {
		id := res.Identity
		out.User = &id
		out.Tokens = toTokens(res.Tokens)
	}
	return out
}

// --- Handlers ---

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req accesshub.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.Register(r.Context(), req)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: registerResponse{
		User:            res.Identity,
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
	}})
}

// Login handles POST /auth/login. A pending OTP answers 202.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req accesshub.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.Login(r.Context(), req)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if res.State == accesshub.LoginAwaitingOTP {
		status = http.StatusAccepted
	}
	writeJSON(w, status, response{Data: toLogin(res)})
}

// VerifyOTP handles POST /auth/verify-otp
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.VerifyOTP(r.Context(), req.UserID, req.Code, accesshub.ClientMeta{})
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: toLogin(res)})
}

// ResendOTP handles POST /auth/resend-otp
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if !decode(w, r, &req) {
		return
	}

	ch, err := h.engine.ResendOTP(r.Context(), req.UserID)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, response{Data: otpChallengeResponse{UserID: ch.UserID, ExpiresAt: ch.ExpiresAt}})
}

// Refresh handles POST /auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.Refresh(r.Context(), req.UserID, req.RefreshToken, accesshub.ClientMeta{})
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: toTokens(res.Tokens)})
}

// Logout handles POST /auth/logout. It answers 204 whether or not the token
// was still live. A bearer access token, when sent, is revoked as well.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	access, _ := middleware.BearerToken(r)
	if err := h.engine.LogoutSession(r.Context(), req.UserID, req.RefreshToken, access); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /auth/logout-all for the authenticated user.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.LogoutAll(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: logoutAllResponse{
		RefreshRevoked: res.RefreshRevoked,
		AccessRevoked:  res.AccessRevoked,
	}})
}

// WhoAmI handles GET /auth/whoami
func (h *Handler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	id, err := h.engine.WhoAmI(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: id})
}

// SecurityEvents handles GET /auth/security-events
func (h *Handler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.engine.SecurityEvents(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	if events == nil {
		events = []accesshub.SecurityEvent{}
	}

	writeJSON(w, http.StatusOK, response{Data: events})
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	status := h.engine.Health(r.Context())
	if !status.RedisAvailable {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", RedisLatency: status.RedisLatency.String()})
}
