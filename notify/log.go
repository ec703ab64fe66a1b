package notify

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/accesshub"
)

// LogMailer writes codes to a logger instead of delivering them. It exists
// for local development and must not be used in production.
type LogMailer struct {
	logger *slog.Logger
}

var _ accesshub.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOTP(ctx context.Context, address, code string) error {
	m.logger.InfoContext(ctx, "otp issued (log mailer)",
		slog.String("address", address),
		slog.String("code", code),
	)
	return nil
}
