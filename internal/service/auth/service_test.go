package auth

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/service/directory"
	pkgauth "github.com/clinicore/clinic-api/pkg/auth"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
)

type memUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return postgres.ErrDuplicateEmail
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, postgres.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, postgres.ErrNoRows
}

func (r *memUserRepo) GetByRoleAndID(_ context.Context, role model.Role, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok || u.Role != role {
		return nil, postgres.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) List(_ context.Context, role model.Role) ([]*model.User, error) {
	var out []*model.User
	for _, u := range r.users {
		if role == "" || u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return postgres.ErrNoRows
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	u, ok := r.users[id]
	if !ok {
		return postgres.ErrNoRows
	}
	u.IsActive = false
	return nil
}

type memTokenRepo struct {
	tokens map[string]uuid.UUID
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]uuid.UUID)}
}

func (r *memTokenRepo) StoreResetToken(_ context.Context, userID uuid.UUID, token string, _ time.Time) error {
	r.tokens[token] = userID
	return nil
}

func (r *memTokenRepo) ValidateResetToken(_ context.Context, token string) (uuid.UUID, error) {
	id, ok := r.tokens[token]
	if !ok {
		return uuid.Nil, postgres.ErrNoRows
	}
	return id, nil
}

func (r *memTokenRepo) InvalidateResetToken(_ context.Context, token string) error {
	if _, ok := r.tokens[token]; !ok {
		return postgres.ErrNoRows
	}
	delete(r.tokens, token)
	return nil
}

type memOutboxRepo struct {
	events []*model.OutboxEvent
}

func (r *memOutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *memOutboxRepo) GetPending(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (r *memOutboxRepo) MarkProcessed(_ context.Context, _ uuid.UUID) error        { return nil }
func (r *memOutboxRepo) MarkRetry(_ context.Context, _ uuid.UUID, _ string) error  { return nil }
func (r *memOutboxRepo) MarkFailed(_ context.Context, _ uuid.UUID, _ string) error { return nil }

type noopEmail struct{}

func (noopEmail) SendWelcome(string, string) error                                 { return nil }
func (noopEmail) SendPasswordReset(string, string) error                           { return nil }
func (noopEmail) SendAppointmentConfirmation(string, string, string, string) error { return nil }

type authFixture struct {
	svc       *Service
	userRepo  *memUserRepo
	tokenRepo *memTokenRepo
	outbox    *memOutboxRepo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	userRepo := newMemUserRepo()
	tokenRepo := newMemTokenRepo()
	outbox := &memOutboxRepo{}
	jwtSvc := pkgauth.NewJWTService(pkgauth.Config{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
	})
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := NewService(directory.NewService(userRepo), jwtSvc, tokenRepo, outbox, noopEmail{}, log)
	return &authFixture{svc: svc, userRepo: userRepo, tokenRepo: tokenRepo, outbox: outbox}
}

func (f *authFixture) registerPatient(t *testing.T, email, password string) *model.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), &model.RegisterRequest{
		Email:     email,
		Password:  password,
		Role:      "patient",
		FirstName: "Jane",
		LastName:  "Doe",
		PatientProfile: &model.PatientProfile{
			EmergencyNumber: "+15550100",
			BloodGroup:      "O+",
		},
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	t.Run("creates a patient with a hashed password", func(t *testing.T) {
		f := newAuthFixture(t)
		user := f.registerPatient(t, "jane@example.com", "secret-pass")

		assert.Equal(t, model.RolePatient, user.Role)
		assert.NotEqual(t, "secret-pass", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret-pass")))
	})

	t.Run("creates a doctor from the doctor variant", func(t *testing.T) {
		f := newAuthFixture(t)
		user, err := f.svc.Register(context.Background(), &model.RegisterRequest{
			Email:         "doc@example.com",
			Password:      "secret-pass",
			Role:          "doctor",
			FirstName:     "Sam",
			LastName:      "Lee",
			DoctorProfile: &model.DoctorProfile{Specialization: "cardiology"},
		})
		require.NoError(t, err)
		assert.Equal(t, model.RoleDoctor, user.Role)
		assert.Nil(t, user.PatientProfile)
	})

	t.Run("rejects a duplicate email as a validation error", func(t *testing.T) {
		f := newAuthFixture(t)
		f.registerPatient(t, "jane@example.com", "secret-pass")

		_, err := f.svc.Register(context.Background(), &model.RegisterRequest{
			Email:     "jane@example.com",
			Password:  "other-pass",
			Role:      "patient",
			FirstName: "Janet",
			LastName:  "Doe",
			PatientProfile: &model.PatientProfile{
				EmergencyNumber: "+15550101",
				BloodGroup:      "A+",
			},
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrValidation, apperrors.Code(err))
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("enqueues an account-creation event", func(t *testing.T) {
		f := newAuthFixture(t)
		user := f.registerPatient(t, "jane@example.com", "secret-pass")

		require.Len(t, f.outbox.events, 1)
		assert.Equal(t, model.EventUserRegistered, f.outbox.events[0].EventType)

		var evt model.UserEvent
		require.NoError(t, json.Unmarshal(f.outbox.events[0].Payload, &evt))
		assert.Equal(t, user.ID, evt.UserID)
		assert.Equal(t, "jane@example.com", evt.Email)
	})

	t.Run("rejects a patient without the patient variant", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Register(context.Background(), &model.RegisterRequest{
			Email: "jane@example.com", Password: "secret-pass", Role: "patient",
			FirstName: "Jane", LastName: "Doe",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrValidation, apperrors.Code(err))
	})

	t.Run("rejects admin registration", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Register(context.Background(), &model.RegisterRequest{
			Email: "root@example.com", Password: "secret-pass", Role: "admin",
			FirstName: "Ada", LastName: "Min",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrValidation, apperrors.Code(err))
	})
}

func TestLogin(t *testing.T) {
	t.Run("issues tokens for valid credentials", func(t *testing.T) {
		f := newAuthFixture(t)
		f.registerPatient(t, "jane@example.com", "secret-pass")

		tokens, err := f.svc.Login(context.Background(), &model.LoginRequest{
			Email: "jane@example.com", Password: "secret-pass",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		f := newAuthFixture(t)
		f.registerPatient(t, "jane@example.com", "secret-pass")

		_, errWrongPass := f.svc.Login(context.Background(), &model.LoginRequest{
			Email: "jane@example.com", Password: "nope",
		})
		_, errNoUser := f.svc.Login(context.Background(), &model.LoginRequest{
			Email: "ghost@example.com", Password: "nope",
		})
		require.Error(t, errWrongPass)
		require.Error(t, errNoUser)
		assert.Equal(t, errWrongPass.Error(), errNoUser.Error())
		assert.Equal(t, apperrors.ErrUnauthorized, apperrors.Code(errWrongPass))
	})

	t.Run("rejects a deactivated account", func(t *testing.T) {
		f := newAuthFixture(t)
		user := f.registerPatient(t, "jane@example.com", "secret-pass")
		require.NoError(t, f.userRepo.Deactivate(context.Background(), user.ID))

		_, err := f.svc.Login(context.Background(), &model.LoginRequest{
			Email: "jane@example.com", Password: "secret-pass",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrUnauthorized, apperrors.Code(err))
	})
}

func TestRefresh(t *testing.T) {
	f := newAuthFixture(t)
	f.registerPatient(t, "jane@example.com", "secret-pass")

	tokens, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Email: "jane@example.com", Password: "secret-pass",
	})
	require.NoError(t, err)

	t.Run("exchanges a refresh token", func(t *testing.T) {
		fresh, err := f.svc.Refresh(context.Background(), tokens.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, fresh.AccessToken)
	})

	t.Run("rejects an access token as refresh token", func(t *testing.T) {
		_, err := f.svc.Refresh(context.Background(), tokens.AccessToken)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrUnauthorized, apperrors.Code(err))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := f.svc.Refresh(context.Background(), "not-a-token")
		assert.Error(t, err)
	})
}

func TestResolvePrincipal(t *testing.T) {
	f := newAuthFixture(t)
	user := f.registerPatient(t, "jane@example.com", "secret-pass")

	tokens, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Email: "jane@example.com", Password: "secret-pass",
	})
	require.NoError(t, err)

	t.Run("resolves role from the directory record", func(t *testing.T) {
		principal, err := f.svc.ResolvePrincipal(context.Background(), tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, principal.UserID)
		assert.Equal(t, model.RolePatient, principal.Role)
	})

	t.Run("rejects tokens of deactivated users", func(t *testing.T) {
		require.NoError(t, f.userRepo.Deactivate(context.Background(), user.ID))
		_, err := f.svc.ResolvePrincipal(context.Background(), tokens.AccessToken)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrUnauthorized, apperrors.Code(err))
	})
}

func TestPasswordReset(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		f := newAuthFixture(t)
		f.registerPatient(t, "jane@example.com", "old-password")

		require.NoError(t, f.svc.ForgotPassword(context.Background(), "jane@example.com"))
		require.Len(t, f.tokenRepo.tokens, 1)

		var token string
		for tok := range f.tokenRepo.tokens {
			token = tok
		}

		require.NoError(t, f.svc.ResetPassword(context.Background(), token, "new-password"))

		_, err := f.svc.Login(context.Background(), &model.LoginRequest{
			Email: "jane@example.com", Password: "new-password",
		})
		assert.NoError(t, err)

		// The token is single use.
		err = f.svc.ResetPassword(context.Background(), token, "another-password")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrUnauthorized, apperrors.Code(err))
	})

	t.Run("unknown email is silently accepted", func(t *testing.T) {
		f := newAuthFixture(t)
		assert.NoError(t, f.svc.ForgotPassword(context.Background(), "ghost@example.com"))
		assert.Empty(t, f.tokenRepo.tokens)
	})
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	user := f.registerPatient(t, "jane@example.com", "old-password")

	t.Run("requires the current password", func(t *testing.T) {
		err := f.svc.ChangePassword(context.Background(), user.ID, "wrong", "new-password")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrUnauthorized, apperrors.Code(err))
	})

	t.Run("changes with the correct current password", func(t *testing.T) {
		require.NoError(t, f.svc.ChangePassword(context.Background(), user.ID, "old-password", "new-password"))

		_, err := f.svc.Login(context.Background(), &model.LoginRequest{
			Email: "jane@example.com", Password: "new-password",
		})
		assert.NoError(t, err)
	})
}
