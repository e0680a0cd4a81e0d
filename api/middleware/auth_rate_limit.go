package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/0111v/projeto-faculdade/api/responses"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

// authBodyLimit caps how much of a login or register body is buffered for the email lookup.
const authBodyLimit = 64 << 10

// AuthRateLimitPolicy throttles one credential endpoint by client IP and by
// the email in the request body.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int64
	emailLimit int64
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:       name,
		window:     window,
		ipLimit:    int64(ipLimit),
		emailLimit: int64(emailLimit),
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// authCounter is one fixed-window counter a request is charged against.
type authCounter struct {
	dimension string
	subject   string
	limit     int64
}

func (p AuthRateLimitPolicy) scope(c authCounter) string {
	return "auth:" + p.name + ":" + c.dimension + ":" + c.subject
}

// counters lists the windows a request counts against. The email is hashed so
// raw addresses never reach Redis or the logs.
func (p AuthRateLimitPolicy) counters(ip string, body []byte) []authCounter {
	var out []authCounter
	if p.ipLimit > 0 && ip != "" {
		out = append(out, authCounter{dimension: "ip", subject: ip, limit: p.ipLimit})
	}
	if p.emailLimit > 0 {
		if email := emailFromBody(body); email != "" {
			out = append(out, authCounter{dimension: "email", subject: sha256Hex(email), limit: p.emailLimit})
		}
	}
	return out
}

// AuthRateLimit guards register and login. Unlike the general limiter it fails
// closed: a Redis outage answers 503 instead of letting guesses through.
func AuthRateLimit(policy AuthRateLimitPolicy, limiter fixedWindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.emailLimit > 0 && r.Body != nil {
				buf, err := io.ReadAll(io.LimitReader(r.Body, authBodyLimit))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				body = buf
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			for _, counter := range policy.counters(clientIP(r), body) {
				allowed, count, err := limiter.FixedWindowAllow(ctx, policy.scope(counter), counter.limit, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					rejectAuthAttempt(ctx, logg, w, policy, counter, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectAuthAttempt(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy AuthRateLimitPolicy, counter authCounter, count int64) {
	if logg != nil {
		fields := map[string]any{
			"policy":         policy.name,
			"dimension":      counter.dimension,
			"attempts":       count,
			"limit":          counter.limit,
			"window_seconds": int(policy.window.Seconds()),
		}
		if counter.dimension == "email" {
			fields["email_hash"] = counter.subject
		} else {
			fields["ip"] = counter.subject
		}
		logg.Warn(logg.WithFields(ctx, fields), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP trusts the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func emailFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
