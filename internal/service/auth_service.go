package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/guregu/null.v4"
)

var ErrInvalidCredentials = errors.New("invalid email or password")
var ErrTokenInvalid = errors.New("token is invalid or expired")

type AuthService struct {
	users         repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
	log           *zap.Logger
}

func NewAuthService(users repository.UserRepository, jwtSecret string, jwtExpiration time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{
		users:         users,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		log:           log,
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, dto domain.RegisterUserDTO) (*domain.User, error) {
	return s.create(ctx, dto, domain.RoleUser)
}

func (s *AuthService) create(ctx context.Context, dto domain.RegisterUserDTO, role string) (*domain.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:    normaliseEmail(dto.Email),
		Password: string(hashed),
		FullName: strings.TrimSpace(dto.FullName),
		Address:  strings.TrimSpace(dto.Address),
		PinCode:  strings.TrimSpace(dto.PinCode),
		Phone:    null.NewString(strings.TrimSpace(dto.Phone), strings.TrimSpace(dto.Phone) != ""),
		Role:     role,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, apperror.Conflict("an account with this email already exists")
		}
		return nil, storageErr(err, "insert user")
	}
	created.Password = ""
	s.log.Info("user registered", zap.Int("user_id", created.ID), zap.String("role", role))
	return created, nil
}

func (s *AuthService) Login(ctx context.Context, dto domain.LoginUserDTO) (*domain.AuthResponseDTO, error) {
	user, err := s.users.FindByEmail(ctx, normaliseEmail(dto.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Wrap(ErrInvalidCredentials, apperror.KindUnauthorized, ErrInvalidCredentials.Error())
		}
		return nil, storageErr(err, "find user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)); err != nil {
		return nil, apperror.Wrap(ErrInvalidCredentials, apperror.KindUnauthorized, ErrInvalidCredentials.Error())
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.Itoa(user.ID),
		"exp":   now.Add(s.jwtExpiration).Unix(),
		"iat":   now.Unix(),
		"role":  user.Role,
		"email": user.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &domain.AuthResponseDTO{
		Token:  signed,
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}, nil
}

// ValidateToken parses a session token and returns the caller it names.
func (s *AuthService) ValidateToken(tokenString string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return domain.Identity{}, fmt.Errorf("%w: malformed token", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Identity{}, fmt.Errorf("%w: token expired", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return domain.Identity{}, fmt.Errorf("%w: token not valid yet", ErrTokenInvalid)
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return domain.Identity{}, ErrTokenInvalid
	}

	sub, _ := claims.GetSubject()
	userID, err := strconv.Atoi(sub)
	if err != nil || userID <= 0 {
		return domain.Identity{}, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	role, _ := claims["role"].(string)
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return domain.Identity{}, fmt.Errorf("%w: bad role", ErrTokenInvalid)
	}
	return domain.Identity{UserID: userID, Role: role}, nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID int) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "load user")
	}
	user.Password = ""
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int, dto domain.UpdateProfileDTO) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "load user")
	}
	phone := strings.TrimSpace(dto.Phone)
	user.FullName = strings.TrimSpace(dto.FullName)
	user.Address = strings.TrimSpace(dto.Address)
	user.PinCode = strings.TrimSpace(dto.PinCode)
	user.Phone = null.NewString(phone, phone != "")

	updated, err := s.users.UpdateProfile(ctx, user)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "update user")
	}
	updated.Password = ""
	return updated, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	users, err := s.users.FindAll(ctx)
	return users, storageErr(err, "list users")
}

// EnsureAdmin creates the admin account on first start. An existing account
// with the same email is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normaliseEmail(email)
	if email == "" || password == "" {
		return nil
	}
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return storageErr(err, "find admin")
	}
	_, err = s.create(ctx, domain.RegisterUserDTO{
		Email:    email,
		Password: password,
		FullName: "Administrator",
		Address:  "-",
		PinCode:  "000000",
	}, domain.RoleAdmin)
	if apperror.IsKind(err, apperror.KindConflict) {
		return nil
	}
	return err
}
