package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"booking-service/internal/domain"
)

// hashCost is lowered in tests.
var hashCost = 12

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Register creates a USER account, or an OWNER account when the registration secret matches.
func (a *App) Register(ctx context.Context, req registerReq) (domain.User, error) {
	name := domain.Sanitize(req.Name)
	email := domain.NormalizeEmail(req.Email)
	if err := domain.ValidateName(name); err != nil {
		return domain.User{}, err
	}
	if !domain.IsEmail(email) {
		return domain.User{}, domain.Validation("Invalid email format.")
	}
	if !domain.IsStrongPassword(req.Password) {
		return domain.User{}, domain.Validation("Password must be at least 8 characters with at least 1 letter and 1 number.")
	}
	if len(req.Password) > 72 {
		return domain.User{}, domain.Validation("Password must be at most 72 bytes.")
	}

	role := domain.RoleUser
	if strings.EqualFold(req.Role, string(domain.RoleOwner)) {
		if a.OwnerSecret == "" || req.OwnerSecret != a.OwnerSecret {
			return domain.User{}, domain.Forbidden("Invalid owner registration credentials.")
		}
		role = domain.RoleOwner
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := a.Store.CreateUser(ctx, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (a *App) Login(ctx context.Context, email, password string) (domain.User, error) {
	u, err := a.Store.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	return checkPassword(u, err, password)
}

// OwnerLogin authenticates an OWNER account by display name.
func (a *App) OwnerLogin(ctx context.Context, username, password string) (domain.User, error) {
	u, err := a.Store.GetOwnerByName(ctx, domain.Sanitize(username))
	return checkPassword(u, err, password)
}

func checkPassword(u domain.User, lookupErr error, password string) (domain.User, error) {
	if errors.Is(lookupErr, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if lookupErr != nil {
		return domain.User{}, lookupErr
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

// customer resolves who a booking belongs to: the caller when authenticated,
// otherwise the user with that email, created as a guest with an unusable password.
func (a *App) customer(ctx context.Context, claims *Claims, name, email string) (int64, error) {
	if claims != nil && claims.ID > 0 {
		return claims.ID, nil
	}

	existing, err := a.Store.GetUserByEmail(ctx, email)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return 0, err
	}

	hash, err := hashPassword("guest-" + uuid.NewString())
	if err != nil {
		return 0, err
	}
	u := domain.User{Name: name, Email: email, PasswordHash: hash, Role: domain.RoleUser}
	if err := a.Store.EnsureUser(ctx, &u); err != nil {
		return 0, err
	}
	a.logger().Debug("guest customer resolved", zap.Int64("user_id", u.ID))
	return u.ID, nil
}

// SeedOwner creates or refreshes the owner account for the configured credentials.
func (a *App) SeedOwner(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		a.logger().Warn("ADMIN_USERNAME and ADMIN_PASSWORD not set, skipping owner seed")
		return nil
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u := domain.User{
		Name:         username,
		Email:        domain.NormalizeEmail(username + "@owner.local"),
		PasswordHash: hash,
		Role:         domain.RoleOwner,
	}
	if err := a.Store.UpsertOwner(ctx, &u); err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}
	a.logger().Info("owner account synced", zap.String("username", username))
	return nil
}
