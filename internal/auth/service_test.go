package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:                 "secret",
	Issuer:                 "storefront",
	ExpirationMinutes:      30,
	RefreshTokenTTLMinutes: 600,
}

func TestRegisterIssuesCustomerTokens(t *testing.T) {
	svc, repo, sessions := buildTestService(t)

	phone := " +15550001 "
	resp, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ada",
		Email:    " Ada@Example.com ",
		Phone:    &phone,
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.User == nil || resp.User.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", resp.User)
	}
	if resp.User.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role, got %s", resp.User.Role)
	}
	stored := repo.byEmail["ada@example.com"]
	if stored == nil || stored.Phone == nil || *stored.Phone != "+15550001" {
		t.Fatalf("phone not normalised: %+v", stored)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Kind != enums.PrincipalUser || claims.SubjectID != stored.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, ok := sessions.records[claims.ID]; !ok {
		t.Fatal("refresh session not stored under the jti")
	}

	_, err = svc.Register(context.Background(), RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "another-pass"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	_, err = svc.Register(context.Background(), RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "short"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginByEmailOrPhone(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	ctx := context.Background()
	phone := "+15550002"
	if _, err := svc.Register(ctx, RegisterRequest{Name: "Cy", Email: "cy@example.com", Phone: &phone, Password: "cy-password"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	byEmail, err := svc.Login(ctx, LoginRequest{Email: "CY@example.com", Password: "cy-password"})
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if byEmail.User.LastLoginAt == nil {
		t.Fatal("expected last login to be recorded")
	}
	if repo.byEmail["cy@example.com"].LastLoginAt == nil {
		t.Fatal("expected repository to receive last login")
	}

	if _, err := svc.Login(ctx, LoginRequest{Phone: phone, Password: "cy-password"}); err != nil {
		t.Fatalf("login by phone: %v", err)
	}

	for name, req := range map[string]LoginRequest{
		"wrong password": {Email: "cy@example.com", Password: "nope-nope"},
		"unknown email":  {Email: "zed@example.com", Password: "cy-password"},
		"no identifier":  {Password: "cy-password"},
	} {
		if _, err := svc.Login(ctx, req); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
}

func TestWorkerLoginCarriesWorkerRole(t *testing.T) {
	svc, _, _ := buildTestService(t)
	stub := svc.(*service).workers.(*stubWorkerRepo)
	hash, err := testHasher().Hash("stock-secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	worker := &models.Delivery{ID: uuid.New(), Name: "Sam", Phone: "+15550003", PasswordHash: hash, Role: enums.WorkerRoleStock}
	stub.workers[worker.ID] = worker

	resp, err := svc.WorkerLogin(context.Background(), WorkerLoginRequest{Phone: worker.Phone, Password: "stock-secret"})
	if err != nil {
		t.Fatalf("worker login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !claims.IsWorker() || claims.Role != enums.UserRoleStock {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if resp.Worker == nil || resp.User != nil {
		t.Fatalf("expected worker payload only: %+v", resp)
	}

	worker.IsDeleted = true
	if _, err := svc.WorkerLogin(context.Background(), WorkerLoginRequest{Phone: worker.Phone, Password: "stock-secret"}); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected deleted worker to be rejected, got %v", err)
	}
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	svc, _, sessions := buildTestService(t)
	ctx := context.Background()
	first, err := svc.Register(ctx, RegisterRequest{Name: "Di", Email: "di@example.com", Password: "di-password"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	second, err := svc.Refresh(ctx, RefreshRequest{AccessToken: first.AccessToken, RefreshToken: first.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if _, err := svc.Refresh(ctx, RefreshRequest{AccessToken: first.AccessToken, RefreshToken: first.RefreshToken}); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected reused refresh token to fail, got %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, second.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := svc.Logout(ctx, claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.records) != 0 {
		t.Fatalf("expected no sessions after logout, got %d", len(sessions.records))
	}
	if _, err := svc.Refresh(ctx, RefreshRequest{AccessToken: "garbage", RefreshToken: "x"}); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for garbage token, got %v", err)
	}
}

func TestSeedAdmin(t *testing.T) {
	svc, _, _ := buildTestService(t)
	admin, err := svc.SeedAdmin(context.Background(), "Root", "root@example.com", "root-password")
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if admin.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin role, got %s", admin.Role)
	}
	if _, err := svc.SeedAdmin(context.Background(), "Root", "root@example.com", "root-password"); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on second seed, got %v", err)
	}
}

func buildTestService(t *testing.T) (Service, *stubUserRepo, *stubSessions) {
	t.Helper()
	repo := &stubUserRepo{byEmail: map[string]*models.User{}}
	sessions := &stubSessions{records: map[string]stubSession{}}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		WorkerRepo:     &stubWorkerRepo{workers: map[uuid.UUID]*models.Delivery{}},
		SessionManager: sessions,
		Hasher:         testHasher(),
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo, sessions
}

func testHasher() *security.Hasher {
	return security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
}

type stubUserRepo struct {
	byEmail map[string]*models.User
}

func (s *stubUserRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()
	s.byEmail[user.Email] = user
	return nil
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	for _, u := range s.byEmail {
		if u.Phone != nil && *u.Phone == phone {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	for _, u := range s.byEmail {
		if u.ID == id {
			u.LastLoginAt = &at
		}
	}
	return nil
}

type stubWorkerRepo struct {
	workers map[uuid.UUID]*models.Delivery
}

func (s *stubWorkerRepo) FindActive(_ context.Context, id uuid.UUID) (*models.Delivery, error) {
	if w, ok := s.workers[id]; ok && !w.IsDeleted {
		return w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubWorkerRepo) FindActiveByPhone(_ context.Context, phone string) (*models.Delivery, error) {
	for _, w := range s.workers {
		if w.Phone == phone && !w.IsDeleted {
			return w, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type stubSession struct {
	token   string
	subject session.Subject
}

type stubSessions struct {
	records map[string]stubSession
}

func (s *stubSessions) Generate(_ context.Context, accessID string, subject session.Subject) (string, error) {
	token := "refresh-" + uuid.NewString()
	s.records[accessID] = stubSession{token: token, subject: subject}
	return token, nil
}

func (s *stubSessions) Rotate(ctx context.Context, oldAccessID, provided string) (*session.Rotation, error) {
	rec, ok := s.records[oldAccessID]
	if !ok || rec.token != provided {
		return nil, session.ErrInvalidRefreshToken
	}
	delete(s.records, oldAccessID)
	next := session.NewAccessID()
	token, err := s.Generate(ctx, next, rec.subject)
	if err != nil {
		return nil, err
	}
	return &session.Rotation{AccessID: next, RefreshToken: token, Subject: rec.subject}, nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	if accessID == "" {
		return errors.New("access id is required")
	}
	delete(s.records, accessID)
	return nil
}
