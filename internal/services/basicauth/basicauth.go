// Package basicauth guards another service with HTTP Basic authentication
// against bcrypt password hashes.
package basicauth

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"endpointd/internal/auth"
	"endpointd/internal/slogutil"
	"endpointd/pkg/service"
)

// DefaultRealm is announced when Options.Realm is empty.
const DefaultRealm = "endpointd"

// Options configure a Guard.
type Options struct {
	Realm string
	// Users maps user names to bcrypt hashes (see auth.HashPassword).
	Users map[string]string
	// Limiter throttles failed attempts per user name. Nil disables throttling.
	Limiter *auth.Limiter
	Logger  *slog.Logger
}

// Guard authenticates each request before handing it to the wrapped service.
type Guard struct {
	next      service.Service
	realm     string
	users     map[string]string
	decoyHash string
	limiter   *auth.Limiter
	logger    *slog.Logger
}

// New wraps next. Every hash in opts.Users must be a valid bcrypt hash.
func New(next service.Service, opts Options) (*Guard, error) {
	if next == nil {
		return nil, fmt.Errorf("basicauth: no service to guard")
	}
	users := make(map[string]string, len(opts.Users))
	names := make([]string, 0, len(opts.Users))
	for name, hash := range opts.Users {
		if err := auth.ValidateHash(hash); err != nil {
			return nil, fmt.Errorf("user %q: %w", name, err)
		}
		users[name] = hash
		names = append(names, name)
	}
	sort.Strings(names)

	g := &Guard{
		next:    next,
		realm:   opts.Realm,
		users:   users,
		limiter: opts.Limiter,
		logger:  opts.Logger,
	}
	if g.realm == "" {
		g.realm = DefaultRealm
	}
	if g.logger == nil {
		g.logger = slogutil.NewDiscardLogger()
	}
	if len(names) > 0 {
		g.decoyHash = users[names[0]]
	}
	return g, nil
}

// Handle implements service.Service.
func (g *Guard) Handle(req service.Request) error {
	user, password, ok := parseBasic(service.FirstValue(req.RequestHeaders(), "Authorization"))
	if !ok {
		return g.challenge(req)
	}

	if g.limiter != nil {
		if blocked, wait := g.limiter.Blocked(user); blocked {
			secs := int(math.Ceil(wait.Seconds()))
			req.ResponseHeaders().Set("Retry-After", []string{strconv.Itoa(secs)})
			return service.RespondText(req, http.StatusTooManyRequests, "too many failed attempts")
		}
	}

	if !g.verify(user, password) {
		if g.limiter != nil {
			g.limiter.Charge(user)
		}
		g.logger.Warn("Authentication failed",
			"contextPath", req.ContextPath(),
			"user", user,
		)
		return g.challenge(req)
	}

	if g.limiter != nil {
		g.limiter.Reset(user)
	}
	return g.next.Handle(req)
}

func (g *Guard) verify(user, password string) bool {
	hash, known := g.users[user]
	if !known {
		// Spend the same bcrypt time for unknown users.
		if g.decoyHash != "" {
			auth.VerifyPassword(g.decoyHash, password)
		}
		return false
	}
	return auth.VerifyPassword(hash, password)
}

func (g *Guard) challenge(req service.Request) error {
	req.ResponseHeaders().Set("WWW-Authenticate", []string{fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", g.realm)})
	return service.RespondText(req, http.StatusUnauthorized, "unauthorized")
}

func parseBasic(header string) (user, password string, ok bool) {
	scheme, encoded, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
