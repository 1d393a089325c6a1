package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
)

const testSecret = "test-secret-key-with-at-least-32-chars"

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	users := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				ID:        "usr_admin",
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager(testSecret, time.Hour, users, nil)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.UserID != "usr_admin" {
		t.Fatalf("expected user id usr_admin, got %q", resp.UserID)
	}

	stored, err := users.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 user, got %d", len(stored))
	}
	if !strings.HasPrefix(stored[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", stored[0].Password)
	}
	if users.updates == 0 {
		t.Fatalf("expected the upgraded hash to be written back")
	}
}

func TestTokenCarriesActor(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager(testSecret, time.Hour, users, nil)

	created, err := manager.CreateUser(context.Background(), domain.UserCreateRequest{Username: "Tezgah1", Password: "pass12345"})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if created.Username != "tezgah1" || created.Role != domain.RoleUser {
		t.Fatalf("unexpected user %+v", created)
	}

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "tezgah1", Password: "pass12345"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.UserID != created.ID || actor.Username != "tezgah1" || actor.Role != domain.RoleUser {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestCreateUserStoresPasswordHash(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager(testSecret, time.Hour, users, nil)

	if _, err := manager.CreateUser(context.Background(), domain.UserCreateRequest{Username: "clerk01", Password: "pass12345"}); err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	stored := users.users["clerk01"]
	if stored.Password == "pass12345" || !strings.HasPrefix(stored.Password, "$2") {
		t.Fatalf("expected bcrypt hash, got %s", stored.Password)
	}
	if stored.ID == "" {
		t.Fatalf("expected user id to be assigned")
	}

	_, err := manager.CreateUser(context.Background(), domain.UserCreateRequest{Username: "clerk01", Password: "pass12345"})
	if !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected duplicate username to be invalid, got %v", err)
	}
	_, err = manager.CreateUser(context.Background(), domain.UserCreateRequest{Username: "clerk02", Password: "short"})
	if !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected short password to be invalid, got %v", err)
	}
}

func TestInactiveUserCannotLogin(t *testing.T) {
	hash, err := hashPassword("pass12345")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := &userStoreStub{users: map[string]domain.UserAccount{
		"gone": {ID: "usr_gone", Username: "gone", Password: hash, Role: domain.RoleUser, Active: false},
	}}
	manager := NewAuthManager(testSecret, time.Hour, users, nil)

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "gone", Password: "pass12345"})
	if !errors.Is(err, errInactiveAccount) {
		t.Fatalf("expected inactive account error, got %v", err)
	}
}

func TestParseTokenRejectsForeignTokens(t *testing.T) {
	manager := NewAuthManager(testSecret, time.Hour, nil, nil)

	other := NewAuthManager("another-secret-key-with-32-characters!", time.Hour, nil, nil)
	foreign, err := other.sign(domain.Actor{UserID: "usr_1", Username: "x", Role: domain.RoleAdmin}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(foreign); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	expired, err := manager.sign(domain.Actor{UserID: "usr_1", Username: "x", Role: domain.RoleAdmin}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "usr_1", Issuer: tokenIssuer},
		Role:             domain.RoleAdmin,
	})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := manager.ParseToken(raw); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}
}
