package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"booking-service/internal/domain"
)

const claimsKey = "claims"

// Claims is the bearer token payload.
type Claims struct {
	ID    int64       `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	Name  string      `json:"name"`
	jwt.RegisteredClaims
}

func (c *Claims) Owner() bool { return c != nil && c.Role == domain.RoleOwner }

// Tokens signs and verifies HS256 bearer tokens.
type Tokens struct {
	secret   []byte
	UserTTL  time.Duration
	OwnerTTL time.Duration
	now      func() time.Time
}

// NewTokens returns a signer for secret. An empty secret is replaced by a
// random one, so tokens do not survive a restart.
func NewTokens(secret string, userTTL, ownerTTL time.Duration) (*Tokens, bool, error) {
	generated := false
	if secret == "" {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, false, fmt.Errorf("generate jwt secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		generated = true
	}
	return &Tokens{secret: []byte(secret), UserTTL: userTTL, OwnerTTL: ownerTTL, now: time.Now}, generated, nil
}

// stateSubject marks OAuth state tokens so they cannot be used as sessions.
const stateSubject = "oauth-state"

func (t *Tokens) Issue(u domain.User, ttl time.Duration) (string, error) {
	return t.issue(u, ttl, "")
}

// IssueState returns an OAuth state value bound to u.
func (t *Tokens) IssueState(u domain.User, ttl time.Duration) (string, error) {
	return t.issue(u, ttl, stateSubject)
}

func (t *Tokens) issue(u domain.User, ttl time.Duration, subject string) (string, error) {
	now := t.now()
	claims := Claims{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

var (
	errMissingToken = domain.Unauthorized("Missing token")
	errTokenExpired = domain.Unauthorized("Token expired")
	errInvalidToken = domain.Unauthorized("Invalid token")
)

// Parse verifies a session token.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims, err := t.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Subject != "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// ParseState verifies a value produced by IssueState.
func (t *Tokens) ParseState(raw string) (*Claims, error) {
	claims, err := t.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Subject != stateSubject {
		return nil, errInvalidToken
	}
	return claims, nil
}

func (t *Tokens) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return t.secret, nil
	}, jwt.WithLeeway(5*time.Second), jwt.WithTimeFunc(t.now))
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errTokenExpired
	case err != nil:
		return nil, domain.Wrap(errInvalidToken, err)
	}
	return claims, nil
}

func bearer(c *gin.Context) string {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// RequireAuth rejects requests without a valid bearer token.
func (a *App) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			a.respond(c, errMissingToken)
			return
		}
		claims, err := a.Tokens.Parse(raw)
		if err != nil {
			a.respond(c, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// OptionalAuth attaches claims when a valid token is present and never blocks.
func (a *App) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearer(c); raw != "" {
			if claims, err := a.Tokens.Parse(raw); err == nil {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

// RequireOwner must run after RequireAuth.
func (a *App) RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !caller(c).Owner() {
			a.respond(c, domain.ErrOwnerRequired)
			return
		}
		c.Next()
	}
}

// caller returns the authenticated claims or nil.
func caller(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

type userDTO struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func toUserDTO(u domain.User) userDTO {
	return userDTO{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type registerReq struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	OwnerSecret string `json:"owner_secret"`
}

// POST /auth/register
func (a *App) RegisterHandler(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, "Name, email, and password are required.")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		a.badRequest(c, "Name, email, and password are required.")
		return
	}

	u, err := a.Register(c.Request.Context(), req)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserDTO(u))
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /auth/login
func (a *App) LoginHandler(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		a.badRequest(c, "Email and password are required.")
		return
	}

	u, err := a.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.respond(c, err)
		return
	}
	a.writeSession(c, u, a.Tokens.UserTTL)
}

type ownerLoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /auth/owner-login
func (a *App) OwnerLoginHandler(c *gin.Context) {
	var req ownerLoginReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		a.badRequest(c, "Username and password are required.")
		return
	}

	u, err := a.OwnerLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		a.respond(c, err)
		return
	}
	a.writeSession(c, u, a.Tokens.OwnerTTL)
}

func (a *App) writeSession(c *gin.Context, u domain.User, ttl time.Duration) {
	token, err := a.Tokens.Issue(u, ttl)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserDTO(u)})
}
