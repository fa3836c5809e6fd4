package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamCapel/mopc-reportes/internal/models"
	"github.com/iamCapel/mopc-reportes/internal/repository"
)

const minPasswordLength = 6

// notifyTimeout bounds a best-effort notification.
const notifyTimeout = 5 * time.Second

// UserService holds the account rules: login gates, registration, and the
// administration of users.
type UserService struct {
	repo     *repository.Repository
	auth     AuthProvider
	notifier Notifier
}

// NewUserService crea el controlador de usuarios.
func NewUserService(repo *repository.Repository, auth AuthProvider, notifier Notifier) *UserService {
	return &UserService{
		repo:     repo,
		auth:     auth,
		notifier: notifier,
	}
}

// Login resolves the username to its email and authenticates by email. A
// user whose account is not verified is authenticated but rejected.
func (us *UserService) Login(ctx context.Context, creds models.Credentials) models.Result[*models.LoginResult] {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return models.Fail[*models.LoginResult](models.ErrInvalidCredentials)
	}

	user, err := us.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return models.Fail[*models.LoginResult](err)
	}
	if user == nil {
		return models.Fail[*models.LoginResult](models.ErrInvalidCredentials)
	}

	session, err := us.auth.Login(ctx, user.Email, creds.Password)
	if err != nil {
		return models.Fail[*models.LoginResult](err)
	}

	if !user.IsVerified || !user.IsActive {
		_ = us.auth.Logout(ctx, session.Token)
		zap.S().Infof("login rechazado para %s: verificado=%t activo=%t", user.Username, user.IsVerified, user.IsActive)
		return models.Fail[*models.LoginResult](models.ErrNotVerified)
	}

	user.LastSeen = time.Now()
	if _, err := us.repo.UpdateUser(ctx, user); err != nil {
		zap.S().Warnf("no se pudo registrar lastSeen de %s: %v", user.Username, err)
	}

	us.withCounters(ctx, user)
	return models.Ok(&models.LoginResult{Session: *session, User: user})
}

func (us *UserService) Logout(ctx context.Context, token string) models.Result[bool] {
	if err := us.auth.Logout(ctx, token); err != nil {
		return models.Fail[bool](err)
	}
	return models.Ok(true)
}

// Authenticate maps a session token to its user. It fails with
// ErrInvalidCredentials when the session is unknown or expired.
func (us *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	session, err := us.auth.Session(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrInvalidCredentials
	}
	user, err := us.repo.GetUserByEmail(ctx, session.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}

// CreateUser registers a new, unverified account. The welcome notification is
// best-effort and never fails the creation.
func (us *UserService) CreateUser(ctx context.Context, req models.CreateUserRequest) models.Result[*models.User] {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if req.Username == "" || req.Password == "" || req.Email == "" || req.Name == "" {
		return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "usuario, contraseña, correo y nombre son obligatorios"))
	}
	if len(req.Password) < minPasswordLength {
		return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "la contraseña debe tener al menos %d caracteres", minPasswordLength))
	}
	role := req.Role
	if role == "" {
		role = models.RoleTecnico
	}
	if !role.Valid() {
		return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "rol %q desconocido", role))
	}

	existing, err := us.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return models.Fail[*models.User](err)
	}
	if existing != nil {
		return models.Fail[*models.User](models.ErrDuplicateUsername)
	}

	if _, err := us.auth.CreateAccount(ctx, req.Email, req.Password); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "%s", err.Error()))
		}
		return models.Fail[*models.User](err)
	}

	user, err := us.repo.CreateUser(ctx, &models.User{
		Username:   req.Username,
		Email:      req.Email,
		Name:       req.Name,
		Role:       role,
		Phone:      req.Phone,
		Cedula:     req.Cedula,
		Department: req.Department,
		IsActive:   true,
		IsVerified: false,
	})
	if err != nil {
		if delErr := us.auth.DeleteAccount(ctx, req.Email); delErr != nil {
			zap.S().Warnf("cuenta huérfana %s tras fallo al crear el usuario: %v", req.Email, delErr)
		}
		return models.Fail[*models.User](err)
	}

	us.sendWelcome(ctx, models.WelcomeMessage{
		To:       user.Email,
		Name:     user.Name,
		Username: user.Username,
		Password: req.Password,
		Role:     user.Role,
	})

	zap.S().Infof("usuario %s creado con rol %s", user.Username, user.Role)
	return models.Ok(user)
}

func (us *UserService) sendWelcome(ctx context.Context, msg models.WelcomeMessage) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := us.notifier.SendWelcome(nctx, msg); err != nil {
		zap.S().Warnf("no se pudo enviar la bienvenida a %s: %v", msg.To, err)
	}
}

// GetUser returns the user with counters derived from the stores.
func (us *UserService) GetUser(ctx context.Context, actor *models.User, id string) models.Result[*models.User] {
	if actor.ID != id && !actor.Role.SeesEverything() {
		return models.Fail[*models.User](models.ErrForbidden)
	}
	user, err := us.repo.GetUser(ctx, id)
	if err != nil {
		return models.Fail[*models.User](err)
	}
	if user == nil {
		return models.Fail[*models.User](models.ErrNotFound)
	}
	us.withCounters(ctx, user)
	return models.Ok(user)
}

func (us *UserService) ListUsers(ctx context.Context, actor *models.User) models.Result[[]models.User] {
	if !actor.Role.SeesEverything() {
		return models.Fail[[]models.User](models.ErrForbidden)
	}
	users, err := us.repo.ListUsers(ctx)
	if err != nil {
		return models.Fail[[]models.User](err)
	}
	for i := range users {
		us.withCounters(ctx, &users[i])
	}
	return models.Ok(users)
}

// UpdateUser applies an administrator's edit.
func (us *UserService) UpdateUser(ctx context.Context, actor *models.User, id string, patch models.UserPatch) models.Result[*models.User] {
	if actor.Role != models.RoleAdministrador {
		return models.Fail[*models.User](models.ErrForbidden)
	}
	user, err := us.repo.GetUser(ctx, id)
	if err != nil {
		return models.Fail[*models.User](err)
	}
	if user == nil {
		return models.Fail[*models.User](models.ErrNotFound)
	}

	if patch.Role != nil {
		if !patch.Role.Valid() {
			return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "rol %q desconocido", *patch.Role))
		}
		user.Role = *patch.Role
	}
	oldEmail := user.Email
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if email == "" {
			return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "el correo no puede quedar vacío"))
		}
		if email != oldEmail {
			other, err := us.repo.GetUserByEmail(ctx, email)
			if err != nil {
				return models.Fail[*models.User](err)
			}
			if other != nil && other.ID != user.ID {
				return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "el correo %s ya está en uso", email))
			}
		}
		user.Email = email
	}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "el nombre no puede quedar vacío"))
		}
		user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Phone != nil {
		user.Phone = *patch.Phone
	}
	if patch.Cedula != nil {
		user.Cedula = *patch.Cedula
	}
	if patch.Department != nil {
		user.Department = *patch.Department
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}

	// Credentials are keyed by email and move first, so a failed move leaves
	// the profile untouched.
	emailChanged := user.Email != oldEmail
	if emailChanged {
		if err := us.auth.ChangeEmail(ctx, oldEmail, user.Email); err != nil {
			if errors.Is(err, ErrAccountExists) {
				return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "%s", err.Error()))
			}
			return models.Fail[*models.User](err)
		}
	}

	updated, err := us.repo.UpdateUser(ctx, user)
	if err != nil {
		if emailChanged {
			if rbErr := us.auth.ChangeEmail(ctx, user.Email, oldEmail); rbErr != nil {
				zap.S().Errorf("credenciales de %s quedaron en %s: %v", user.Username, user.Email, rbErr)
			}
		}
		return models.Fail[*models.User](err)
	}
	us.withCounters(ctx, updated)
	return models.Ok(updated)
}

// VerifyUser completes the two-stage registration.
func (us *UserService) VerifyUser(ctx context.Context, actor *models.User, id string) models.Result[*models.User] {
	if actor.Role != models.RoleAdministrador {
		return models.Fail[*models.User](models.ErrForbidden)
	}
	user, err := us.repo.GetUser(ctx, id)
	if err != nil {
		return models.Fail[*models.User](err)
	}
	if user == nil {
		return models.Fail[*models.User](models.ErrNotFound)
	}
	user.IsVerified = true
	updated, err := us.repo.UpdateUser(ctx, user)
	if err != nil {
		return models.Fail[*models.User](err)
	}
	zap.S().Infof("usuario %s verificado por %s", updated.Username, actor.Username)
	return models.Ok(updated)
}

// DeleteUser removes the profile and its credentials. Reports and drafts the
// user authored are kept.
func (us *UserService) DeleteUser(ctx context.Context, actor *models.User, id string) models.Result[bool] {
	if actor.Role != models.RoleAdministrador {
		return models.Fail[bool](models.ErrForbidden)
	}
	if actor.ID == id {
		return models.Fail[bool](models.NewValidationError(models.FieldClassUsuario, "un administrador no puede eliminar su propia cuenta"))
	}
	user, err := us.repo.GetUser(ctx, id)
	if err != nil {
		return models.Fail[bool](err)
	}
	if user == nil {
		return models.Fail[bool](models.ErrNotFound)
	}
	if err := us.repo.DeleteUser(ctx, id); err != nil {
		return models.Fail[bool](err)
	}
	if err := us.auth.DeleteAccount(ctx, user.Email); err != nil {
		zap.S().Warnf("no se pudo eliminar la cuenta de %s: %v", user.Email, err)
	}
	return models.Ok(true)
}

// AddNote attaches an audit note to a user.
func (us *UserService) AddNote(ctx context.Context, actor *models.User, id string, noteType models.NoteType, text string) models.Result[*models.User] {
	if !actor.Role.SeesEverything() {
		return models.Fail[*models.User](models.ErrForbidden)
	}
	if !noteType.Valid() {
		return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "tipo de nota %q desconocido", noteType))
	}
	if strings.TrimSpace(text) == "" {
		return models.Fail[*models.User](models.NewValidationError(models.FieldClassUsuario, "la nota está vacía"))
	}

	user, err := us.repo.GetUser(ctx, id)
	if err != nil {
		return models.Fail[*models.User](err)
	}
	if user == nil {
		return models.Fail[*models.User](models.ErrNotFound)
	}
	user.Notes = append(user.Notes, models.Note{
		ID:        uuid.NewString(),
		Type:      noteType,
		Text:      strings.TrimSpace(text),
		Author:    actor.Name,
		Timestamp: time.Now(),
	})
	updated, err := us.repo.UpdateUser(ctx, user)
	if err != nil {
		return models.Fail[*models.User](err)
	}
	return models.Ok(updated)
}

// UpdateLocation records the actor's last known position.
func (us *UserService) UpdateLocation(ctx context.Context, actor *models.User, loc models.Location) models.Result[*models.User] {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
		return models.Fail[*models.User](models.NewValidationError(models.FieldClassUbicacion, "coordenadas fuera de rango"))
	}
	user, err := us.repo.GetUser(ctx, actor.ID)
	if err != nil {
		return models.Fail[*models.User](err)
	}
	if user == nil {
		return models.Fail[*models.User](models.ErrNotFound)
	}
	loc.LastUpdated = time.Now()
	user.CurrentLocation = &loc
	user.LastSeen = loc.LastUpdated
	updated, err := us.repo.UpdateUser(ctx, user)
	if err != nil {
		return models.Fail[*models.User](err)
	}
	return models.Ok(updated)
}

// EnsureAdmin creates a verified administrator when no user with that
// username exists yet.
func (us *UserService) EnsureAdmin(ctx context.Context, username, password, email string) error {
	existing, err := us.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	res := us.CreateUser(ctx, models.CreateUserRequest{
		Username: username,
		Password: password,
		Email:    email,
		Name:     "Administrador",
		Role:     models.RoleAdministrador,
	})
	if !res.OK {
		return errors.New(res.Error)
	}
	res.Data.IsVerified = true
	if _, err := us.repo.UpdateUser(ctx, res.Data); err != nil {
		return err
	}
	zap.S().Infof("administrador inicial %s creado", username)
	return nil
}

// withCounters fills reportsCount and pendingReportsCount from the stores.
// A failed count leaves the stored value.
func (us *UserService) withCounters(ctx context.Context, u *models.User) {
	if n, err := us.repo.CountReportsByUser(ctx, u.Username); err == nil {
		u.ReportsCount = n
	}
	if n, err := us.repo.CountDraftsByUser(ctx, u.Username); err == nil {
		u.PendingReportsCount = n
	}
}
