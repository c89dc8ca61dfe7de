package service

import (
	"context"
	"time"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const LegalAge = 18

// AgeOn — полных лет на дату now (по календарю, без учёта часового пояса рождения).
func AgeOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func IsLegalAge(dob *time.Time, now time.Time) bool {
	if dob == nil || dob.IsZero() {
		return false
	}
	return AgeOn(*dob, now) >= LegalAge
}

// AgeGate пересчитывает возраст на каждом защищённом действии и пишет решение в журнал.
type AgeGate struct {
	log *zap.Logger
	now func() time.Time
}

func NewAgeGate(log *zap.Logger) *AgeGate {
	return &AgeGate{log: log, now: time.Now}
}

// Check — решение без записи в журнал: флаг и пересчёт по дате рождения.
func (g *AgeGate) Check(u *models.User) (bool, string) {
	switch {
	case u == nil:
		return false, "user not found"
	case u.DateOfBirth == nil:
		return false, "date of birth missing"
	case !u.AgeVerified:
		return false, "age not verified"
	case !IsLegalAge(u.DateOfBirth, g.now()):
		return false, "under legal age"
	}
	return true, ""
}

// Require пропускает действие только при подтверждённом совершеннолетии.
// Любой исход записывается в age_verification_logs через переданный репозиторий
// (он может быть привязан к транзакции оформления заказа).
func (g *AgeGate) Require(ctx context.Context, repo *repository.Repository, u *models.User, orderID *uuid.UUID, meta ClientMeta) error {
	ok, reason := g.Check(u)

	if u != nil {
		rec := &models.AgeVerificationRecord{
			UserID:    u.ID,
			OrderID:   orderID,
			Verified:  ok,
			Method:    models.VerificationDOBCheck,
			Reason:    reason,
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			CreatedAt: g.now(),
		}
		if err := repo.AgeVerifications.Append(ctx, rec); err != nil {
			g.log.Error("Не удалось записать проверку возраста", zap.String("user_id", u.ID.String()), zap.Error(err))
			return err
		}
	}

	if !ok {
		fields := []zap.Field{zap.String("reason", reason)}
		if u != nil {
			fields = append(fields, zap.String("user_id", u.ID.String()))
		}
		g.log.Warn("Проверка возраста не пройдена", fields...)
		return ErrAgeVerificationRequired
	}
	return nil
}

// VerifyAtRegistration выставляет флаг, если по дате рождения возраст уже допустим.
// Решение пишется в журнал в обоих случаях.
func (g *AgeGate) VerifyAtRegistration(ctx context.Context, repo *repository.Repository, u *models.User, meta ClientMeta) (bool, error) {
	now := g.now()
	legal := IsLegalAge(u.DateOfBirth, now)
	reason := ""
	if !legal {
		reason = "under legal age at registration"
	}

	if legal {
		if err := repo.Users.MarkAgeVerified(ctx, u.ID, now); err != nil {
			return false, err
		}
		u.AgeVerified = true
		u.AgeVerifiedAt = &now
	}

	rec := &models.AgeVerificationRecord{
		UserID:    u.ID,
		Verified:  legal,
		Method:    models.VerificationDOBCheck,
		Reason:    reason,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
	}
	if err := repo.AgeVerifications.Append(ctx, rec); err != nil {
		return false, err
	}
	return legal, nil
}

// Guard — проверка для корзины: в журнал пишется только отказ.
func (g *AgeGate) Guard(ctx context.Context, repo *repository.Repository, u *models.User, meta ClientMeta) error {
	if ok, _ := g.Check(u); ok {
		return nil
	}
	return g.Require(ctx, repo, u, nil, meta)
}
