package rate

import (
	"net/http"
	"strings"
	"time"

	"spotgate/internal/metrics"
	"spotgate/logger"
)

// ReportRateLimitExceeded records an HTTP 429 from the venue.
func ReportRateLimitExceeded(log *logger.Log, component, endpoint, ip string) {
	fields := logger.Fields{"endpoint": endpoint}
	if ip != "" {
		fields["ip"] = ip
	}
	metrics.EmitMetric(log, component, "rate_limit_exceeded", int64(1), "counter", fields)
	log.WithComponent(component).WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan records an HTTP 418 from the venue. The ban expiry is parsed
// from the message when present.
func ReportIPBan(log *logger.Log, component, endpoint, ip, msg string) {
	fields := logger.Fields{"endpoint": endpoint}
	if ip != "" {
		fields["ip"] = ip
	}
	if until, ok := BannedUntil(msg); ok {
		fields["banned_until"] = until.UTC().Format(time.RFC3339)
	}
	metrics.EmitMetric(log, component, "ip_ban", int64(1), "counter", fields)
	log.WithComponent(component).WithFields(fields).Error("ip banned")
}

// detectLimit classifies a venue reply as a rate-limit or an IP ban from its
// status code, falling back to the message wording.
func detectLimit(status int, msg string) (rateLimit bool, ipBan bool) {
	switch status {
	case http.StatusTooManyRequests:
		return true, false
	case http.StatusTeapot:
		return false, true
	}
	lowerMsg := strings.ToLower(msg)
	ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "banned")
	rateLimit = !ipBan && (strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit"))
	return
}

// ReportLimitFromResponse checks a failed reply for rate-limit or ban signals
// and records the matching metric. It reports whether either was found.
func ReportLimitFromResponse(log *logger.Log, component, endpoint, ip string, status int, msg string) bool {
	if log == nil {
		log = logger.GetLogger()
	}
	rateLimit, ipBan := detectLimit(status, msg)
	if rateLimit {
		ReportRateLimitExceeded(log, component, endpoint, ip)
	}
	if ipBan {
		ReportIPBan(log, component, endpoint, ip, msg)
	}
	return rateLimit || ipBan
}

// BannedUntil extracts the epoch-millisecond expiry from messages such as
// "Way too many requests; IP banned until 1499827319559.".
func BannedUntil(msg string) (time.Time, bool) {
	idx := strings.Index(strings.ToLower(msg), "until")
	if idx < 0 {
		return time.Time{}, false
	}
	ms, ok := firstEpochMillis(msg[idx:])
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
