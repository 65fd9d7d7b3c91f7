package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/store"
	"lojafacil/backend/internal/xid"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLength = 8

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	now       func() time.Time
	verify    func(stored string, input string) bool
}

// unknownUserHash is compared against on logins for unregistered emails so
// both paths pay for one bcrypt comparison.
var unknownUserHash = sync.OnceValue(func() string {
	hash, err := hashPassword("lojafacil-unknown-user")
	if err != nil {
		return ""
	}
	return hash
})

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
}

type ownerClaims struct {
	jwtlib.RegisteredClaims
	Email string `json:"email"`
}

// NewAuthManager expects a secret already validated by the caller; an empty
// secret is rejected rather than replaced.
func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) (*AuthManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		now:       func() time.Time { return time.Now().UTC() },
		verify:    verifyPassword,
	}, nil
}

// Register creates an owner account and signs a token for it.
func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.LoginResponse{}, fmt.Errorf("%w: a valid email is required", store.ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLength {
		return domain.LoginResponse{}, fmt.Errorf("%w: password must be at least %d characters", store.ErrInvalidInput, minPasswordLength)
	}
	company := strings.TrimSpace(req.CompanyName)
	responsible := strings.TrimSpace(req.ResponsibleName)
	if company == "" || responsible == "" {
		return domain.LoginResponse{}, fmt.Errorf("%w: companyName and responsibleName are required", store.ErrInvalidInput)
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.UserAccount{
		ID:              xid.New("usr"),
		Email:           email,
		PasswordHash:    passwordHash,
		CompanyName:     company,
		ResponsibleName: responsible,
		CreatedAt:       a.now(),
	}
	if err := a.userStore.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.LoginResponse{}, fmt.Errorf("%w: email already registered", store.ErrConflict)
		}
		return domain.LoginResponse{}, err
	}

	return a.issue(user)
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	user, err := a.userStore.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.verify(unknownUserHash(), req.Password)
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}
	if !a.verify(user.PasswordHash, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	return a.issue(*user)
}

func (a *AuthManager) issue(user domain.UserAccount) (domain.LoginResponse, error) {
	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(user.ID, user.Email, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	profile := user.Profile()
	return domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		Profile:     &profile,
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &ownerClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer("lojafacil"))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UserID: sub, Email: claims.Email}, nil
}

func (a *AuthManager) sign(userID, email string, expiresAt time.Time) (string, error) {
	claims := ownerClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "lojafacil",
		},
		Email: email,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
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
