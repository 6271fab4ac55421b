package user

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
		// GetProfile returns the complete resolved Profile: identity, coin
		// balance (SUM of the ledger) and equipped cosmetics.
		GetProfile(ctx context.Context, id string) (Profile, error)
	}

	ServiceInterface interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Register(ctx context.Context, nu NewUser) (User, error)
		Create(ctx context.Context, nu NewUser) (User, error)
		ConfirmAccount(ctx context.Context, uid, token string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		GetProfile(ctx context.Context, id string) (Profile, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo                Repository
		mailSvc             core.EmailService
		conf                *core.Config
		requireConfirmation bool
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *service {
	return &service{
		repo:                repo,
		mailSvc:             mailSvc,
		conf:                conf,
		requireConfirmation: !conf.Debug,
	}
}

// NewServiceMock disables account confirmation so tests get active users right away.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) *service {
	svc := NewService(repo, mailSvc, conf)
	svc.requireConfirmation = false
	return svc
}

func (svc *service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register signs up a new (student by default) account. When confirmation is
// required the account starts inactive and a confirmation email is sent; the
// account may also be activated later by an admin.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if nu.Roles == nil {
		nu.Roles = []string{RoleStudent}
	}
	active := !svc.requireConfirmation
	usr, err := svc.create(ctx, nu, active)
	if err != nil {
		return User{}, err
	}
	if !active {
		svc.sendConfirmationMail(usr)
	}
	return usr, nil
}

// Create creates an already-active account (admin surface).
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	return svc.create(ctx, nu, true)
}

func (svc *service) create(ctx context.Context, nu NewUser, active bool) (User, error) {
	now := core.NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  &active,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) sendConfirmationMail(usr User) {
	link := fmt.Sprintf("%s/confirm-account?uid=%s&token=%s",
		svc.conf.FrontendBaseURL, EncodeUID(usr), MakeToken(usr, purposeAccountConfirmation, svc.conf))
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Confirm your account",
		BodyStr: "Welcome to " + svc.conf.AppName + "!\n\n" +
			"Follow this link to confirm your account and start learning:\n" + link,
	})
}

// ConfirmAccount activates the account the token was issued for.
// Confirming an already-active account is a no-op; activation may have
// happened through the admin surface in the meantime.
func (svc *service) ConfirmAccount(ctx context.Context, uid, token string) (User, error) {
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewValidationError(errInvalidToken)
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if usr.IsActive != nil && *usr.IsActive {
		return usr, nil
	}
	if err = verifyToken(usr, token, purposeAccountConfirmation, svc.conf); err != nil {
		return User{}, core.NewValidationError(err)
	}

	active := true
	usr.UpdatedAt = core.NowFunc().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr, &active)
	return usr, errors.Wrap(err, "activating user")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) GetProfile(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Roles:     uu.Roles,
		UpdatedAt: core.NowFunc().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc().UTC()
	return svc.repo.SetLastLogin(ctx, usr)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return errors.Wrap(err, "finding user by email")
	}
	link := fmt.Sprintf("%s/password-reset?uid=%s&token=%s",
		svc.conf.FrontendBaseURL, EncodeUID(usr), MakeToken(usr, purposePasswordReset, svc.conf))
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password reset",
		BodyStr: "Follow this link to reset your password:\n" + link,
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, rp.Token, purposePasswordReset, svc.conf); err != nil {
		return core.NewValidationError(err)
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr, nil)
	return errors.Wrap(err, "updating user")
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}
