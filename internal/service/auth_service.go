package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLen = 8

type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       *string
	DateOfBirth time.Time
}

type AuthResult struct {
	User        *models.User
	AccessToken string
	ExpiresAt   time.Time
}

type AuthService struct {
	repo      *repository.Repository
	hasher    PasswordHasher
	tokens    TokenProvider
	gate      *AgeGate
	accessTTL time.Duration
	now       func() time.Time
	log       *zap.Logger
}

func NewAuthService(
	repo *repository.Repository,
	hasher PasswordHasher,
	tokens TokenProvider,
	gate *AgeGate,
	accessTTL time.Duration,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		gate:      gate,
		accessTTL: accessTTL,
		now:       time.Now,
		log:       log,
	}
}

// Register создаёт покупателя. Несовершеннолетний регистрируется, но флаг
// age_verified остаётся false, и корзина с оформлением ему недоступны.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta ClientMeta) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, fmt.Errorf("%w: first and last name are required", ErrValidation)
	}
	if in.DateOfBirth.IsZero() || in.DateOfBirth.After(s.now()) {
		return nil, ErrInvalidDateOfBirth
	}

	exists, err := s.repo.Users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dob := in.DateOfBirth
	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		DateOfBirth:  &dob,
		Role:         models.RoleCustomer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var legal bool
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Users.Create(ctx, u); err != nil {
			return err
		}
		legal, err = s.gate.VerifyAtRegistration(ctx, tx, u, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Пользователь зарегистрирован",
		zap.String("user_id", u.ID.String()),
		zap.Bool("age_verified", legal),
	)
	return s.issue(ctx, u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.repo.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive || !s.hasher.Compare(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, u)
}

func (s *AuthService) Me(ctx context.Context) (*models.User, error) {
	uid, _, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.Users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// VerifyAge повторяет проверку по дате рождения: пользователь,
// которому на регистрации не было 18, получает флаг после совершеннолетия.
func (s *AuthService) VerifyAge(ctx context.Context, meta ClientMeta) (*models.User, error) {
	u, err := s.Me(ctx)
	if err != nil {
		return nil, err
	}
	if u.AgeVerified && IsLegalAge(u.DateOfBirth, s.now()) {
		return u, nil
	}
	legal, err := s.gate.VerifyAtRegistration(ctx, s.repo, u, meta)
	if err != nil {
		return nil, err
	}
	if !legal {
		return nil, ErrAgeVerificationRequired
	}
	return u, nil
}

func (s *AuthService) issue(ctx context.Context, u *models.User) (*AuthResult, error) {
	token, exp, err := s.tokens.SignAccess(ctx, u.ID, string(u.Role), s.accessTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, AccessToken: token, ExpiresAt: exp}, nil
}
