package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"lifesync-engine/internal/db"
	"lifesync-engine/internal/domain"
	"lifesync-engine/internal/repository"
	"lifesync-engine/internal/validate"
)

// ErrInvalidCredentials es el único error de credenciales que sale del
// servicio: el mensaje genérico evita enumerar cuentas existentes.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService coordina alta, login y manejo de contraseñas.
type AuthService struct {
	logger *zap.Logger
	users  repository.UserRepository
	jwt    *JWTService
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, jwt *JWTService) *AuthService {
	return &AuthService{logger: logger, users: users, jwt: jwt}
}

// SignUp registra la cuenta. El identificador se normaliza estrictamente.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (domain.Session, error) {
	email = validate.NormalizeIdentifier(email)
	if err := validate.Email(email); err != nil {
		return domain.Session{}, err
	}
	if err := validate.Password(password); err != nil {
		return domain.Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Session{}, err
	}

	id, err := s.users.Create(ctx, email, string(hash))
	if err != nil {
		// Una colisión de email responde igual que cualquier otra falla de
		// alta: mensaje genérico, sin enumeración.
		s.logger.Warn("signup failed", zap.Error(err))
		return domain.Session{}, ErrInvalidCredentials
	}

	return s.jwt.GenerateSession(domain.User{ID: id, Email: email})
}

// SignIn valida credenciales y emite la sesión.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	email = validate.NormalizeIdentifier(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("sign in lookup failed", zap.Error(err))
		}
		// Coste comparable al camino feliz para no filtrar existencia.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
			[]byte(password),
		)
		return domain.Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, ErrInvalidCredentials
	}

	if err := s.users.TouchSignIn(ctx, user.ID); err != nil {
		s.logger.Warn("touch sign in failed", zap.Error(err))
	}
	return s.jwt.GenerateSession(user)
}

// ResetPassword responde siempre igual exista o no la cuenta. El envío del
// correo de reseteo queda en el proveedor de identidad; acá solo se registra.
func (s *AuthService) ResetPassword(ctx context.Context, email string) {
	email = validate.NormalizeIdentifier(email)
	if validate.Email(email) != nil {
		return
	}
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		return
	}
	s.logger.Info("password reset requested", zap.String("email", email))
}

// UpdatePassword cambia la contraseña del usuario autenticado.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	if err := validate.Password(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		s.logger.Warn("update password failed", zap.Error(err))
		return ErrInvalidCredentials
	}
	return nil
}

// SignOut revoca el token de la sesión actual.
func (s *AuthService) SignOut(claims *Claims) {
	s.jwt.Revoke(claims)
}
