package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/delivery"
	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	WorkerLogin(ctx context.Context, req WorkerLoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error)
	Logout(ctx context.Context, accessID string) error
	SeedAdmin(ctx context.Context, name, email, password string) (*users.UserDTO, error)
}

type userRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type workerRepository interface {
	FindActive(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindActiveByPhone(ctx context.Context, phone string) (*models.Delivery, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, subject session.Subject) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (*session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	WorkerRepo     workerRepository
	SessionManager sessionManager
	Hasher         passwordHasher
	JWTConfig      config.JWTConfig
	Now            func() time.Time
}

type service struct {
	users   userRepository
	workers workerRepository
	session sessionManager
	hasher  passwordHasher
	jwtCfg  config.JWTConfig
	now     func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.WorkerRepo == nil {
		return nil, fmt.Errorf("worker repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:   params.UserRepo,
		workers: params.WorkerRepo,
		session: params.SessionManager,
		hasher:  params.Hasher,
		jwtCfg:  params.JWTConfig,
		now:     now,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	user, err := s.createUser(ctx, req.Name, req.Email, req.Phone, req.Password, enums.UserRoleCustomer)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return s.issueForUser(ctx, user, now)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.lookupUser(ctx, req.Email, req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.verify(req.Password, user.PasswordHash); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return s.issueForUser(ctx, user, now)
}

func (s *service) WorkerLogin(ctx context.Context, req WorkerLoginRequest) (*TokenResponse, error) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	worker, err := s.workers.FindActiveByPhone(ctx, phone)
	if err != nil {
		return nil, credentialsOr(err, "lookup worker")
	}
	if err := s.verify(req.Password, worker.PasswordHash); err != nil {
		return nil, err
	}
	return s.issueForWorker(ctx, worker, s.now().UTC())
}

// Refresh rotates the refresh session bound to the access token's jti and
// mints a new access token for the same subject. The subject is reloaded so
// deleted workers and role changes take effect.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, strings.TrimSpace(req.AccessToken))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}
	rotation, err := s.session.Rotate(ctx, claims.ID, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	if rotation.Subject.ID != claims.SubjectID {
		_ = s.session.Revoke(ctx, rotation.AccessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}

	now := s.now().UTC()
	resp := &TokenResponse{RefreshToken: rotation.RefreshToken, ExpiresIn: int64(s.jwtCfg.AccessTokenTTL().Seconds())}
	payload := pkgAuth.AccessTokenPayload{SubjectID: rotation.Subject.ID, Kind: rotation.Subject.Kind, JTI: rotation.AccessID}
	switch rotation.Subject.Kind {
	case enums.PrincipalWorker:
		worker, err := s.workers.FindActive(ctx, rotation.Subject.ID)
		if err != nil {
			_ = s.session.Revoke(ctx, rotation.AccessID)
			return nil, credentialsOr(err, "lookup worker")
		}
		payload.Role = worker.Role.UserRole()
		dto := delivery.ToWorkerDTO(*worker)
		resp.Worker = &dto
	default:
		user, err := s.users.FindByID(ctx, rotation.Subject.ID)
		if err != nil {
			_ = s.session.Revoke(ctx, rotation.AccessID)
			return nil, credentialsOr(err, "lookup user")
		}
		payload.Role = user.Role
		resp.User = users.FromModel(user)
	}

	resp.AccessToken, err = pkgAuth.MintAccessToken(s.jwtCfg, now, payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return resp, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// SeedAdmin creates the bootstrap admin account used by cmd/migrate.
func (s *service) SeedAdmin(ctx context.Context, name, email, password string) (*users.UserDTO, error) {
	user, err := s.createUser(ctx, name, email, nil, password, enums.UserRoleAdmin)
	if err != nil {
		return nil, err
	}
	return users.FromModel(user), nil
}

func (s *service) createUser(ctx context.Context, name, email string, phone *string, password string, role enums.UserRole) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and email are required")
	}
	if len(password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if phone != nil {
		trimmed := strings.TrimSpace(*phone)
		phone = &trimmed
		if trimmed == "" {
			phone = nil
		}
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup email")
	}
	if phone != nil {
		if _, err := s.users.FindByPhone(ctx, *phone); err == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup phone")
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user := &models.User{Name: name, Email: email, Phone: phone, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "account already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

func (s *service) lookupUser(ctx context.Context, email, phone string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)
	var (
		user *models.User
		err  error
	)
	switch {
	case email != "":
		user, err = s.users.FindByEmail(ctx, email)
	case phone != "":
		user, err = s.users.FindByPhone(ctx, phone)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if err != nil {
		return nil, credentialsOr(err, "lookup user")
	}
	return user, nil
}

func (s *service) verify(password, hash string) error {
	ok, err := s.hasher.Verify(password, hash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return nil
}

func (s *service) issueForUser(ctx context.Context, user *models.User, now time.Time) (*TokenResponse, error) {
	resp, err := s.issue(ctx, now, session.Subject{ID: user.ID, Kind: enums.PrincipalUser}, user.Role)
	if err != nil {
		return nil, err
	}
	resp.User = users.FromModel(user)
	return resp, nil
}

func (s *service) issueForWorker(ctx context.Context, worker *models.Delivery, now time.Time) (*TokenResponse, error) {
	resp, err := s.issue(ctx, now, session.Subject{ID: worker.ID, Kind: enums.PrincipalWorker}, worker.Role.UserRole())
	if err != nil {
		return nil, err
	}
	dto := delivery.ToWorkerDTO(*worker)
	resp.Worker = &dto
	return resp, nil
}

func (s *service) issue(ctx context.Context, now time.Time, subject session.Subject, role enums.UserRole) (*TokenResponse, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		SubjectID: subject.ID,
		Kind:      subject.Kind,
		Role:      role,
		JTI:       accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID, subject)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtCfg.AccessTokenTTL().Seconds()),
	}, nil
}

func credentialsOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
