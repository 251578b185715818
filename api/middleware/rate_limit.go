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

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type counterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// RateLimitPolicy is a fixed window per tenant, counted separately for the
// client address and, when PerEmail is set, for the customer email found in
// a JSON body.
type RateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func NewRateLimitPolicy(name string, window time.Duration, perIP, perEmail int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "public"
	}
	return RateLimitPolicy{Name: name, Window: window, PerIP: perIP, PerEmail: perEmail}
}

func (p RateLimitPolicy) active() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

// bucket names the counter for the current window. Keys roll over at window
// boundaries, so Retry-After is exact.
func (p RateLimitPolicy) bucket(now time.Time, dimension, tenant, value string) (string, time.Duration) {
	start := now.Truncate(p.Window)
	key := strings.Join([]string{"rl", p.Name, dimension, tenant, value, strconv.FormatInt(start.Unix(), 10)}, ":")
	return key, start.Add(p.Window).Sub(now)
}

type limitCheck struct {
	dimension string
	value     string
	limit     int
}

func RateLimit(policy RateLimitPolicy, store counterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return rateLimit(policy, store, logg, time.Now)
}

func rateLimit(policy RateLimitPolicy, store counterStore, logg *logger.Logger, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			checks := []limitCheck{{dimension: "ip", value: clientIP(r), limit: policy.PerIP}}
			if policy.PerEmail > 0 {
				email, err := peekEmail(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				if email != "" {
					checks = append(checks, limitCheck{dimension: "email", value: digest(email), limit: policy.PerEmail})
				}
			}

			tenant := ""
			if id, ok := TenantIDFromContext(ctx); ok {
				tenant = id.String()
			}
			at := now()
			for _, c := range checks {
				if c.limit <= 0 || c.value == "" {
					continue
				}
				key, resetIn := policy.bucket(at, c.dimension, tenant, c.value)
				count, err := store.IncrWithTTL(ctx, key, resetIn+time.Second)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(c.limit) {
					rejectRateLimited(ctx, logg, w, policy, c, count, resetIn)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, c limitCheck, count int64, resetIn time.Duration) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    policy.Name,
			"dimension": c.dimension,
			"key":       c.value,
			"attempts":  count,
			"limit":     c.limit,
		}), "rate limit exceeded")
	}
	secs := int(resetIn.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// peekEmail reads the customer email and restores the body for the handler.
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var fields struct {
		CustomerEmail string `json:"customerEmail"`
		Email         string `json:"email"`
	}
	if json.Unmarshal(body, &fields) != nil {
		return "", nil
	}
	email := fields.CustomerEmail
	if email == "" {
		email = fields.Email
	}
	return strings.ToLower(strings.TrimSpace(email)), nil
}

// clientIP trusts the first X-Forwarded-For hop; the API runs behind a load
// balancer that sets it.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func digest(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:12])
}
