package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/vessel"
)

// Session is an authenticated operator and the token that carries the identity
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Actor     entity.Actor `json:"user"`
}

// SessionService signs operators in and turns bearer tokens back into actors
type SessionService interface {
	Login(ctx context.Context, login, password string) (*Session, error)
	Authenticate(token string) (entity.Actor, error)
	// SelectVessel switches a carrier's active vessel to one of their registered vessels
	SelectVessel(actor entity.Actor, name string) (*Session, error)
}

type sessionClaims struct {
	Name         string   `json:"name"`
	Login        string   `json:"login,omitempty"`
	Role         string   `json:"role"`
	CPF          string   `json:"cpf,omitempty"`
	Vessels      []string `json:"vessels,omitempty"`
	ActiveVessel string   `json:"active_vessel,omitempty"`
	BackendToken string   `json:"bt,omitempty"`
	jwt.RegisteredClaims
}

type sessionServiceImpl struct {
	authenticator port.Authenticator
	secret        []byte
	ttl           time.Duration
	logger        Logger
	now           func() time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(authenticator port.Authenticator, secret string, ttl time.Duration, logger Logger) SessionService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &sessionServiceImpl{
		authenticator: authenticator,
		secret:        []byte(secret),
		ttl:           ttl,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *sessionServiceImpl) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, entity.ErrUnauthenticated
	}

	user, err := s.authenticator.Authenticate(ctx, login, password)
	if err != nil {
		s.logger.Info("Login failed", "login", login, "error", err)
		return nil, err
	}

	actor := ActorFromUser(user)
	session, err := s.issue(actor)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Login succeeded", "actor_id", actor.ID, "role", actor.Role)
	return session, nil
}

func (s *sessionServiceImpl) Authenticate(token string) (entity.Actor, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return entity.Actor{}, fmt.Errorf("%w: %v", entity.ErrUnauthenticated, err)
	}

	role, err := entity.ParseRole(claims.Role)
	if err != nil {
		return entity.Actor{}, fmt.Errorf("%w: %v", entity.ErrUnauthenticated, err)
	}

	return entity.Actor{
		ID:           claims.Subject,
		Name:         claims.Name,
		Login:        claims.Login,
		Role:         role,
		CPF:          claims.CPF,
		Vessels:      claims.Vessels,
		ActiveVessel: claims.ActiveVessel,
		Token:        claims.BackendToken,
	}, nil
}

func (s *sessionServiceImpl) SelectVessel(actor entity.Actor, name string) (*Session, error) {
	if actor.Role != entity.RoleCarrier {
		return nil, fmt.Errorf("select vessel: %w", entity.ErrForbidden)
	}
	for _, v := range actor.Vessels {
		if vessel.Same(v, name) {
			actor.ActiveVessel = v
			return s.issue(actor)
		}
	}
	return nil, fmt.Errorf("%w: vessel %q is not registered for this carrier", entity.ErrInvalidInput, name)
}

func (s *sessionServiceImpl) issue(actor entity.Actor) (*Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := sessionClaims{
		Name:         actor.Name,
		Login:        actor.Login,
		Role:         actor.Role.String(),
		CPF:          actor.CPF,
		Vessels:      actor.Vessels,
		ActiveVessel: actor.ActiveVessel,
		BackendToken: actor.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expires, Actor: actor}, nil
}

// ActorFromUser derives the acting identity of a stored user.
// A carrier with one vessel, or with a primary vessel, starts with it active.
func ActorFromUser(u *entity.User) entity.Actor {
	actor := entity.Actor{
		ID:    u.ID,
		Name:  u.Name,
		Login: u.Login,
		Role:  u.Role,
		CPF:   u.CPF,
	}
	if u.Role == entity.RoleCarrier {
		actor.Vessels = vessel.Extract(u.Vessel, nil, u.Vessels)
		if strings.TrimSpace(u.Vessel) != "" {
			actor.ActiveVessel = strings.TrimSpace(u.Vessel)
		} else if len(actor.Vessels) == 1 {
			actor.ActiveVessel = actor.Vessels[0]
		}
	}
	actor.Token = u.BackendToken
	return actor
}
