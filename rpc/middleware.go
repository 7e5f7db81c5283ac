package rpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"primenumbers/crypto"
	"primenumbers/observability"
)

const (
	// ScopeAdmin grants the operator methods.
	ScopeAdmin = "admin"

	headerRequestID = "X-Request-ID"
	visitorTTL      = 5 * time.Minute
)

type contextKey string

const contextKeyRequestID contextKey = "rpc.request_id"

var (
	errMissingToken = errors.New("missing bearer token")
	errAuthDisabled = errors.New("RPC authentication not configured")
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Address common.Address
	Scopes  []string
}

// HasScope reports whether the token carried scope.
func (p *Principal) HasScope(scope string) bool {
	return p != nil && hasScopes(p.Scopes, []string{scope})
}

// Authenticator validates HS256 bearer tokens whose subject is the caller
// address.
type Authenticator struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
}

// NewAuthenticator returns nil when secret is empty; a nil authenticator
// rejects every authenticated method.
func NewAuthenticator(secret, issuer string) *Authenticator {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret), issuer: strings.TrimSpace(issuer), clockSkew: 2 * time.Minute}
}

// Authenticate resolves the principal of r.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	if a == nil {
		return nil, errAuthDisabled
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return nil, errMissingToken
	}
	claims, err := a.parseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if a.issuer != "" {
		if value, ok := claims["iss"].(string); !ok || value != a.issuer {
			return nil, errors.New("issuer mismatch")
		}
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("token subject required")
	}
	addr, err := crypto.ParseAddress(subject)
	if err != nil {
		return nil, err
	}
	return &Principal{Address: addr, Scopes: extractScopes(claims, "scope")}, nil
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.clockSkew))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

// IssueToken signs a token for subject. The node uses it to print an
// operator token at startup.
func IssueToken(secret, issuer string, subject common.Address, ttl time.Duration, scopes ...string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errAuthDisabled
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject.Hex(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if len(scopes) > 0 {
		claims["scope"] = strings.Join(scopes, " ")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
}

func extractScopes(claims jwt.MapClaims, scopeClaim string) []string {
	raw, ok := claims[scopeClaim]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func hasScopes(scopes []string, required []string) bool {
	set := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		set[scope] = struct{}{}
	}
	for _, req := range required {
		if _, ok := set[req]; !ok {
			return false
		}
	}
	return true
}

func extractBearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RateLimiter throttles requests per client address.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// NewRateLimiter returns nil when requestsPerMinute is zero, which disables
// throttling.
func NewRateLimiter(requestsPerMinute float64, burst int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(requestsPerMinute / 60.0),
		burst:    burst,
		visitors: make(map[string]*rate.Limiter),
	}
}

// Middleware rejects requests above the client's budget with a JSON-RPC
// error.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.obtain(clientID(req)).Allow() {
			observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
			w.Header().Set("Content-Type", "application/json")
			writeError(w, nil, newError(http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded", nil))
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) obtain(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limiter, ok := r.visitors[id]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(r.limit, r.burst)
	r.visitors[id] = limiter
	time.AfterFunc(visitorTTL, func() {
		r.mu.Lock()
		delete(r.visitors, id)
		r.mu.Unlock()
	})
	return limiter
}

// clientID keys the limiter on the socket peer; forwarded headers are
// ignored.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestID tags every request with an id, reusing the caller's when given.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
