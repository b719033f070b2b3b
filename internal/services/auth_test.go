package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"chatrelay-backend/internal/models"
)

type stubUserRepo struct {
	users map[uuid.UUID]*models.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	r.users[userID].LastLoginAt = &now
	return nil
}

type memoryTokenStore struct {
	tokens map[string]uuid.UUID
}

func (s *memoryTokenStore) Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	s.tokens[token] = userID
	return nil
}

func (s *memoryTokenStore) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	id, ok := s.tokens[token]
	if !ok {
		return uuid.Nil, errors.New("not found")
	}
	return id, nil
}

func (s *memoryTokenStore) Delete(ctx context.Context, token string) error {
	delete(s.tokens, token)
	return nil
}

type stubSigner struct{}

func (stubSigner) GenerateAccessToken(userID uuid.UUID, email, username string) (string, error) {
	return "access-" + userID.String(), nil
}

func newTestAuthService() (*AuthService, *stubUserRepo, *memoryTokenStore) {
	users := newStubUserRepo()
	tokens := &memoryTokenStore{tokens: make(map[string]uuid.UUID)}
	svc := NewAuthService(users, tokens, stubSigner{})
	svc.hashCost = bcrypt.MinCost
	return svc, users, tokens
}

var validRegistration = models.RegisterRequest{
	FullName: "Ada Lovelace",
	Email:    "Ada@Example.com",
	Username: "ada_l",
	Password: "engine1843",
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestAuthService()

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "not-an-email",
		Username: "x",
		Password: "short",
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"full_name", "email", "username", "password"} {
		if _, ok := vErr.Fields[field]; !ok {
			t.Fatalf("expected field %q in %v", field, vErr.Fields)
		}
	}
}

func TestRegister_HashesAndRejectsDuplicates(t *testing.T) {
	svc, _, _ := newTestAuthService()

	user, err := svc.Register(context.Background(), validRegistration)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.PasswordHash == validRegistration.Password {
		t.Fatalf("expected password to be hashed")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(validRegistration.Password)) != nil {
		t.Fatalf("expected stored hash to match password")
	}

	var cErr *ConflictError
	if _, err := svc.Register(context.Background(), validRegistration); !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError for duplicate email, got %v", err)
	}

	dupUsername := validRegistration
	dupUsername.Email = "other@example.com"
	if _, err := svc.Register(context.Background(), dupUsername); !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError for duplicate username, got %v", err)
	}
}

func TestLogin_RefreshRotationAndLogout(t *testing.T) {
	svc, users, tokens := newTestAuthService()
	user, err := svc.Register(context.Background(), validRegistration)
	if err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}

	var uErr *UnauthorizedError
	if _, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "wrong1234"}); !errors.As(err, &uErr) {
		t.Fatalf("expected UnauthorizedError for wrong password, got %v", err)
	}
	if _, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "engine1843"}); !errors.As(err, &uErr) {
		t.Fatalf("expected UnauthorizedError for unknown email, got %v", err)
	}

	pair, err := svc.Login(context.Background(), models.LoginRequest{Email: " ADA@example.com", Password: "engine1843"})
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if pair.AccessToken != "access-"+user.ID.String() || pair.ExpiresIn != 900 {
		t.Fatalf("unexpected token pair: %+v", pair)
	}
	if users.users[user.ID].LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}

	rotated, err := svc.RefreshToken(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}
	if _, err := svc.RefreshToken(context.Background(), pair.RefreshToken); !errors.As(err, &uErr) {
		t.Fatalf("expected old refresh token to be rejected, got %v", err)
	}

	if err := svc.Logout(context.Background(), rotated.RefreshToken); err != nil {
		t.Fatalf("unexpected logout error: %v", err)
	}
	if len(tokens.tokens) != 0 {
		t.Fatalf("expected no live refresh tokens, got %d", len(tokens.tokens))
	}
}

func TestMe(t *testing.T) {
	svc, _, _ := newTestAuthService()
	user, _ := svc.Register(context.Background(), validRegistration)

	got, err := svc.Me(context.Background(), user.ID)
	if err != nil || got.Username != "ada_l" {
		t.Fatalf("expected registered user, got %+v, %v", got, err)
	}

	var nfErr *NotFoundError
	if _, err := svc.Me(context.Background(), uuid.New()); !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
