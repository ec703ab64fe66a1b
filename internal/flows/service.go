package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Ledger != nil && s.deps.Login.Users != nil
}

func (s Service) Register(ctx context.Context, in RegisterInput) RegisterResult {
	return RunRegister(ctx, in, s.deps.Register)
}

func (s Service) Login(ctx context.Context, in LoginInput) LoginResult {
	return RunLogin(ctx, in, s.deps.Login, s.deps.OTP)
}

func (s Service) VerifyOTP(ctx context.Context, in VerifyOTPInput) VerifyOTPResult {
	return RunVerifyOTP(ctx, in, s.deps.OTP)
}

func (s Service) ResendOTP(ctx context.Context, userID string) ResendOTPResult {
	return RunResendOTP(ctx, userID, s.deps.OTP)
}

func (s Service) Refresh(ctx context.Context, in RefreshInput) RefreshResult {
	return RunRefresh(ctx, in, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, in LogoutInput) error {
	return RunLogout(ctx, in, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) (LogoutAllResult, error) {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) SecurityEvents(ctx context.Context, userID string) ([]SecurityEvent, error) {
	return RunSecurityEvents(ctx, userID, s.deps.Events)
}

func (s Service) Validate(ctx context.Context, token string) ValidateResult {
	return RunValidate(ctx, token, s.deps.Validate)
}
