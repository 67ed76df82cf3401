package audit

import "context"

type requestInfoKey struct{}

// RequestInfo is the request metadata stamped on audit entries.
type RequestInfo struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// WithRequestInfo attaches request metadata to ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the metadata attached by WithRequestInfo, or the zero value.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}
