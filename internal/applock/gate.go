// Package applock guards the ledger behind an optional numeric PIN.
//
// The PIN is stored as a bcrypt hash in redis. Unlocking trades the PIN for a
// short-lived HS256 session token; changing or removing the PIN bumps a
// generation counter that invalidates every token issued before.
package applock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nimasrn/ledger-book/pkg/logger"
	"github.com/nimasrn/ledger-book/pkg/redis"
	"golang.org/x/crypto/bcrypt"
)

const MinPINLength = 4

const (
	pinKey        = "lock:pin"
	generationKey = "lock:generation"
	issuer        = "ledger-book"
)

var (
	ErrInvalidPIN     = errors.New("pin must be at least 4 digits")
	ErrPINMismatch    = errors.New("pin confirmation does not match")
	ErrAlreadyEnabled = errors.New("pin lock is already enabled")
	ErrNotEnabled     = errors.New("pin lock is not enabled")
	ErrWrongPIN       = errors.New("wrong pin")
	ErrInvalidToken   = errors.New("invalid session token")
)

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionClaims struct {
	Generation int64 `json:"gen"`
	jwt.RegisteredClaims
}

type Gate struct {
	redis  redis.RedisAdapter
	secret []byte
	ttl    time.Duration
	cost   int
	clock  func() time.Time
}

type Option func(*Gate)

// WithCost sets the bcrypt cost.
func WithCost(cost int) Option {
	return func(g *Gate) {
		g.cost = cost
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.clock = now
	}
}

func NewGate(adapter redis.RedisAdapter, secret []byte, ttl time.Duration, opts ...Option) *Gate {
	g := &Gate{
		redis:  adapter,
		secret: secret,
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Status reports whether a PIN is set.
func (g *Gate) Status(ctx context.Context) (bool, error) {
	return g.redis.Exist(ctx, pinKey)
}

// Setup enables the lock with pin. confirm must repeat it.
func (g *Gate) Setup(ctx context.Context, pin, confirm string) error {
	if err := validatePIN(pin); err != nil {
		return err
	}
	if pin != confirm {
		return ErrPINMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), g.cost)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}
	ok, err := g.redis.SetNX(ctx, pinKey, hash, 0)
	if err != nil {
		return fmt.Errorf("failed to store pin: %w", err)
	}
	if !ok {
		return ErrAlreadyEnabled
	}

	if _, err := g.redis.Incr(ctx, generationKey); err != nil {
		return fmt.Errorf("failed to rotate sessions: %w", err)
	}
	logger.Info("pin lock enabled")
	return nil
}

// Remove disables the lock. The current pin is required.
func (g *Gate) Remove(ctx context.Context, pin string) error {
	if err := g.checkPIN(ctx, pin); err != nil {
		return err
	}
	if err := g.redis.Del(ctx, pinKey); err != nil {
		return fmt.Errorf("failed to remove pin: %w", err)
	}
	if _, err := g.redis.Incr(ctx, generationKey); err != nil {
		return fmt.Errorf("failed to rotate sessions: %w", err)
	}
	logger.Info("pin lock removed")
	return nil
}

// Unlock exchanges the pin for a session token.
func (g *Gate) Unlock(ctx context.Context, pin string) (*Session, error) {
	if err := g.checkPIN(ctx, pin); err != nil {
		return nil, err
	}
	gen, err := g.generation(ctx)
	if err != nil {
		return nil, err
	}

	now := g.clock()
	expires := now.Add(g.ttl)
	claims := sessionClaims{
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expires.Truncate(time.Second)}, nil
}

// Verify accepts any token while the lock is disabled.
func (g *Gate) Verify(ctx context.Context, token string) error {
	enabled, err := g.Status(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	if token == "" {
		return ErrInvalidToken
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.clock),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	gen, err := g.generation(ctx)
	if err != nil {
		return err
	}
	if claims.Generation != gen {
		return fmt.Errorf("%w: session revoked", ErrInvalidToken)
	}
	return nil
}

func (g *Gate) checkPIN(ctx context.Context, pin string) error {
	hash, err := g.redis.Get(ctx, pinKey)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return ErrNotEnabled
		}
		return fmt.Errorf("failed to read pin: %w", err)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(pin)) != nil {
		return ErrWrongPIN
	}
	return nil
}

func (g *Gate) generation(ctx context.Context) (int64, error) {
	raw, err := g.redis.Get(ctx, generationKey)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read session generation: %w", err)
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

func validatePIN(pin string) error {
	if len(pin) < MinPINLength {
		return ErrInvalidPIN
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return ErrInvalidPIN
		}
	}
	return nil
}
