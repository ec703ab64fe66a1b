package security

import "time"

// PasswordReport summarises one argon2id parameter set.
type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report is the derived security posture of a built engine.
type Report struct {
	ProductionMode        bool
	SigningAlgorithm      string
	KeySource             string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	OTPTTL                time.Duration
	PasswordHash          PasswordReport
	SecretHash            PasswordReport
	OTPEnabled            bool
	ReuseDetectionEnabled bool
	LoginThrottleActive   bool
	IPThrottleActive      bool
	OTPThrottleActive     bool
	RefreshThrottleActive bool
	AuditEnabled          bool
	MetricsEnabled        bool
}

// ReportInput is the raw configuration a Report is derived from.
type ReportInput struct {
	ProductionMode     bool
	SigningAlgorithm   string
	KeySource          string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	OTPEnabled         bool
	OTPTTL             time.Duration
	Password           PasswordReport
	Secret             PasswordReport
	DetectReuse        bool
	EnableIPThrottle   bool
	MaxLoginAttempts   int
	LoginCooldown      time.Duration
	MaxOTPAttempts     int
	MaxRefreshAttempts int
	AuditEnabled       bool
	MetricsEnabled     bool
}

// BuildReport derives the posture flags from input.
func BuildReport(input ReportInput) Report {
	loginThrottle := input.MaxLoginAttempts > 0 && input.LoginCooldown > 0

	r := Report{
		ProductionMode:        input.ProductionMode,
		SigningAlgorithm:      input.SigningAlgorithm,
		KeySource:             input.KeySource,
		AccessTTL:             input.AccessTTL,
		RefreshTTL:            input.RefreshTTL,
		PasswordHash:          input.Password,
		SecretHash:            input.Secret,
		OTPEnabled:            input.OTPEnabled,
		ReuseDetectionEnabled: input.DetectReuse,
		LoginThrottleActive:   loginThrottle,
		IPThrottleActive:      loginThrottle && input.EnableIPThrottle,
		OTPThrottleActive:     input.OTPEnabled && input.MaxOTPAttempts > 0,
		RefreshThrottleActive: input.MaxRefreshAttempts > 0,
		AuditEnabled:          input.AuditEnabled,
		MetricsEnabled:        input.MetricsEnabled,
	}
	if input.OTPEnabled {
		r.OTPTTL = input.OTPTTL
	}
	return r
}
