package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

const tokenIssuer = "tezgah"

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveAccount    = errors.New("account is inactive")
	errInvalidToken       = errors.New("invalid or expired token")
)

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	users     map[string]credential
	logger    *zap.Logger
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type credential struct {
	id       string
	password string
	role     string
	active   bool
	created  time.Time
}

type tokenClaims struct {
	jwtlib.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore, logger *zap.Logger) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	manager := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		users:     make(map[string]credential),
		logger:    logger,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	manager.bootstrapUsers(ctx)
	return manager
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	a.bootstrapUsers(ctx)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok || !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !cred.active {
		return domain.LoginResponse{}, errInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(domain.Actor{UserID: cred.id, Username: username, Role: cred.role}, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		UserID:      cred.id,
		Role:        cred.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// ParseToken accepts only HS256 tokens signed with the manager secret.
func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &tokenClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UserID: sub, Username: claims.Username, Role: claims.Role}, nil
}

func (a *AuthManager) sign(actor domain.Actor, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Username: actor.Username,
		Role:     actor.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// CreateUser registers a regular user. Only admins get here; the route is
// gated before the call.
func (a *AuthManager) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error) {
	a.bootstrapUsers(ctx)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.UserView{}, fmt.Errorf("%w: username must be at least 4 characters", store.ErrInvalidRequest)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.UserView{}, fmt.Errorf("%w: username must not contain spaces", store.ErrInvalidRequest)
	}
	if len(strings.TrimSpace(req.Password)) < 8 {
		return domain.UserView{}, fmt.Errorf("%w: password must be at least 8 characters", store.ErrInvalidRequest)
	}

	a.mu.RLock()
	_, exists := a.users[username]
	a.mu.RUnlock()
	if exists {
		return domain.UserView{}, fmt.Errorf("%w: username already exists", store.ErrInvalidRequest)
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserView{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.UserAccount{
		ID:        xid.New("usr"),
		Username:  username,
		Password:  passwordHash,
		Role:      domain.RoleUser,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if a.userStore != nil {
		if err := a.userStore.CreateUser(ctx, user); err != nil {
			return domain.UserView{}, err
		}
	}

	a.mu.Lock()
	a.users[username] = credential{
		id:       user.ID,
		password: user.Password,
		role:     user.Role,
		active:   true,
		created:  user.CreatedAt,
	}
	a.mu.Unlock()

	return domain.UserView{
		ID:        user.ID,
		Username:  username,
		Role:      user.Role,
		Active:    true,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (a *AuthManager) ListUsers(ctx context.Context) []domain.UserView {
	a.bootstrapUsers(ctx)
	a.mu.RLock()
	result := make([]domain.UserView, 0, len(a.users))
	for username, user := range a.users {
		result = append(result, domain.UserView{
			ID:        user.id,
			Username:  username,
			Role:      user.role,
			Active:    user.active,
			CreatedAt: user.created,
		})
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

// bootstrapUsers refreshes the credential cache from the user store and
// upgrades any plain-text password it finds to a bcrypt hash.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		a.logger.Warn("failed to load users", zap.Error(err))
		return
	}
	if len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" {
			continue
		}
		password := user.Password
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				if err := a.userStore.UpdateUserPassword(ctx, username, hashed); err != nil {
					a.logger.Warn("failed to upgrade password hash", zap.String("username", username), zap.Error(err))
				}
			}
		}
		id := user.ID
		if id == "" {
			id = username
		}
		a.users[username] = credential{
			id:       id,
			password: password,
			role:     user.Role,
			active:   user.Active,
			created:  user.CreatedAt,
		}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
