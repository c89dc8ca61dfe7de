package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AddressInput struct {
	AddressType *models.AddressType
	Street      string
	Suburb      string
	City        string
	Province    string
	PostalCode  string
	IsDefault   bool
}

// AddressPatch — частичное обновление, nil поля не меняются.
type AddressPatch struct {
	AddressType *models.AddressType
	Street      *string
	Suburb      *string
	City        *string
	Province    *string
	PostalCode  *string
	IsDefault   *bool
}

type AddressService interface {
	ListAddresses(ctx context.Context) ([]models.Address, error)
	CreateAddress(ctx context.Context, in AddressInput) (*models.Address, error)
	UpdateAddress(ctx context.Context, id uuid.UUID, patch AddressPatch) (*models.Address, error)
	DeleteAddress(ctx context.Context, id uuid.UUID) error
	SetDefaultAddress(ctx context.Context, id uuid.UUID) (*models.Address, error)
}

type addressService struct {
	repo *repository.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewAddressService(repo *repository.Repository, log *zap.Logger) AddressService {
	return &addressService{repo: repo, log: log, now: time.Now}
}

func (s *addressService) ListAddresses(ctx context.Context) ([]models.Address, error) {
	uid, _, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.Addresses.ListByUser(ctx, uid)
}

func (s *addressService) CreateAddress(ctx context.Context, in AddressInput) (*models.Address, error) {
	uid, _, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	a := &models.Address{
		ID:          uuid.New(),
		UserID:      uid,
		AddressType: in.AddressType,
		Street:      strings.TrimSpace(in.Street),
		Suburb:      strings.TrimSpace(in.Suburb),
		City:        strings.TrimSpace(in.City),
		Province:    strings.TrimSpace(in.Province),
		PostalCode:  strings.TrimSpace(in.PostalCode),
		IsDefault:   in.IsDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateAddress(a); err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if a.IsDefault {
			if err := tx.Addresses.ClearDefault(ctx, uid); err != nil {
				return err
			}
		}
		return tx.Addresses.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Адрес добавлен", zap.String("address_id", a.ID.String()), zap.String("user_id", uid.String()))
	return a, nil
}

func (s *addressService) UpdateAddress(ctx context.Context, id uuid.UUID, patch AddressPatch) (*models.Address, error) {
	uid, _, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}

	var updated *models.Address
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		a, err := tx.Addresses.GetForUser(ctx, id, uid)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAddressNotFound
		}

		fields := map[string]any{}
		if patch.AddressType != nil {
			a.AddressType = patch.AddressType
			fields["address_type"] = *patch.AddressType
		}
		if patch.Street != nil {
			a.Street = strings.TrimSpace(*patch.Street)
			fields["street_address"] = a.Street
		}
		if patch.Suburb != nil {
			a.Suburb = strings.TrimSpace(*patch.Suburb)
			fields["suburb"] = a.Suburb
		}
		if patch.City != nil {
			a.City = strings.TrimSpace(*patch.City)
			fields["city"] = a.City
		}
		if patch.Province != nil {
			a.Province = strings.TrimSpace(*patch.Province)
			fields["province"] = a.Province
		}
		if patch.PostalCode != nil {
			a.PostalCode = strings.TrimSpace(*patch.PostalCode)
			fields["postal_code"] = a.PostalCode
		}
		if err := validateAddress(a); err != nil {
			return err
		}

		if patch.IsDefault != nil {
			if *patch.IsDefault && !a.IsDefault {
				if err := tx.Addresses.ClearDefault(ctx, uid); err != nil {
					return err
				}
			}
			a.IsDefault = *patch.IsDefault
			fields["is_default"] = a.IsDefault
		}
		if len(fields) == 0 {
			updated = a
			return nil
		}
		fields["updated_at"] = s.now()
		if err := tx.Addresses.UpdateFields(ctx, id, fields); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *addressService) DeleteAddress(ctx context.Context, id uuid.UUID) error {
	uid, _, err := requireAuth(ctx)
	if err != nil {
		return err
	}
	ok, err := s.repo.Addresses.Delete(ctx, id, uid)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAddressNotFound
	}
	s.log.Info("Адрес удалён", zap.String("address_id", id.String()), zap.String("user_id", uid.String()))
	return nil
}

func (s *addressService) SetDefaultAddress(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	on := true
	return s.UpdateAddress(ctx, id, AddressPatch{IsDefault: &on})
}

func validateAddress(a *models.Address) error {
	if a.AddressType != nil && !a.AddressType.Valid() {
		return fmt.Errorf("%w: address type must be home, work or other", ErrInvalidAddress)
	}
	if utf8.RuneCountInString(a.Street) < 5 {
		return fmt.Errorf("%w: street address must be at least 5 characters long", ErrInvalidAddress)
	}
	if utf8.RuneCountInString(a.City) < 2 {
		return fmt.Errorf("%w: city must be at least 2 characters long", ErrInvalidAddress)
	}
	if !slices.Contains(models.Provinces, a.Province) {
		return fmt.Errorf("%w: invalid South African province", ErrInvalidAddress)
	}
	if len(a.PostalCode) != 4 || strings.IndexFunc(a.PostalCode, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return fmt.Errorf("%w: postal code must be 4 digits", ErrInvalidAddress)
	}
	return nil
}
