package accesshub

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Request structs that
// leave IP empty fall back to this value; it feeds per-IP login throttling,
// refresh record metadata and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the caller's User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}

// metaFrom fills blanks in m from ctx.
func metaFrom(ctx context.Context, m ClientMeta) ClientMeta {
	if m.IP == "" {
		m.IP = clientIPFromContext(ctx)
	}
	if m.UserAgent == "" {
		m.UserAgent = userAgentFromContext(ctx)
	}
	return m
}
