package account

import (
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/darasa/backend/core"
)

var (
	// errors
	ErrNotFound            = errors.New("account not found")
	ErrEmailExists         = errors.New("an account with this email already exists")
	ErrUsernameExists      = errors.New("an account with this username already exists")
	ErrVerificationInvalid = errors.New("invalid verification token")
	ErrVerificationExpired = errors.New("verification token expired")
)

type (
	Repository interface {
		CheckUsernameUniqueness(username, email string, excludedAccounts ...Account) error
		CreateAccount(acct Account) (Account, error)
		GetAccountByID(id string) (Account, error)
		GetAccountByEmail(email string) (Account, error)
		GetAccountByUsernameOrEmail(username string) (Account, error)
		GetAccountByVerificationToken(token string) (Account, error)
		// FilterAccounts applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Name, Username or Email.
		FilterAccounts(filter QueryFilter) ([]Account, error)
		UpdateAccount(acct Account, isActive *bool) (Account, error)
		DeleteAccountsByID(ids ...string) error
	}

	Service interface {
		CheckUniqueness(uname, email string, exclAccts ...Account) error
		Register(na NewAccount) (Account, error)
		Create(na NewAccount) (Account, error)
		VerifyEmail(token string) (Account, error)
		QueryAll() ([]Account, error)
		Filter(filter QueryFilter) ([]Account, error)
		GetByID(id string) (Account, error)
		GetByEmail(email string) (Account, error)
		GetByUsernameOrEmail(uname string) (Account, error)
		Update(id string, ua UpdateAccount) (Account, error)
		SetLastLogin(acct Account) (Account, error)
		RequestPasswordReset(email string) error
		ResetPassword(rp ResetAccountPassword) error
		Delete(ids ...string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	secretKey = conf.SecretKey
	passwordResetTimeoutDelta = conf.PasswordResetTimeout
	verificationTimeoutDelta = conf.EmailVerificationTimeout
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
	}
}

func (svc *service) CheckUniqueness(uname, email string, exclAccts ...Account) error {
	if err := svc.repo.CheckUsernameUniqueness(uname, email, exclAccts...); err != nil {
		var field string
		switch err {
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

// Register creates a self-signed-up Account and sends it a verification email.
func (svc *service) Register(na NewAccount) (Account, error) {
	acct, err := svc.create(na, false /* verified */)
	if err != nil {
		return Account{}, err
	}
	svc.sendVerificationMail(acct)
	return acct, nil
}

// Create creates an Account on behalf of an admin; no verification needed.
func (svc *service) Create(na NewAccount) (Account, error) {
	return svc.create(na, true /* verified */)
}

func (svc *service) create(na NewAccount, verified bool) (Account, error) {
	now := time.Now().UTC()
	acct := Account{
		ID:            uuid.New().String(),
		Name:          na.Name,
		Username:      na.Username,
		Email:         na.Email,
		IsActive:      true,
		EmailVerified: verified,
		Roles:         na.Roles,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !verified {
		acct.VerificationToken = uuid.New().String()
		acct.VerificationExpiry = now.Add(verificationTimeoutDelta)
	}
	if err := acct.SetPassword(na.Password); err != nil {
		return Account{}, err
	}
	return svc.repo.CreateAccount(acct)
}

// VerifyEmail marks the Account owning this token as verified.
// A single lookup serves teachers and students alike.
func (svc *service) VerifyEmail(token string) (Account, error) {
	if token == "" {
		return Account{}, ErrVerificationInvalid
	}
	acct, err := svc.repo.GetAccountByVerificationToken(token)
	if err != nil {
		if err == ErrNotFound {
			return Account{}, ErrVerificationInvalid
		}
		return Account{}, err
	}
	if time.Now().UTC().After(acct.VerificationExpiry) {
		return Account{}, ErrVerificationExpired
	}
	acct.EmailVerified = true
	acct.VerificationToken = ""
	acct.VerificationExpiry = time.Time{}
	acct.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAccount(acct, nil)
}

func (svc *service) QueryAll() ([]Account, error) {
	return svc.repo.FilterAccounts(QueryFilter{})
}

func (svc *service) Filter(filter QueryFilter) ([]Account, error) {
	return svc.repo.FilterAccounts(filter)
}

func (svc *service) GetByID(id string) (Account, error) {
	return svc.repo.GetAccountByID(id)
}

func (svc *service) GetByEmail(email string) (Account, error) {
	return svc.repo.GetAccountByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) GetByUsernameOrEmail(uname string) (Account, error) {
	return svc.repo.GetAccountByUsernameOrEmail(core.CleanString(uname, true /* lower */))
}

func (svc *service) Update(id string, ua UpdateAccount) (Account, error) {
	acct := Account{
		ID:        id,
		Name:      ua.Name,
		Username:  ua.Username,
		Email:     ua.Email,
		Roles:     ua.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if ua.Password != "" {
		if err := acct.SetPassword(ua.Password); err != nil {
			return Account{}, err
		}
	}
	return svc.repo.UpdateAccount(acct, ua.IsActive)
}

func (svc *service) SetLastLogin(acct Account) (Account, error) {
	acct.LastLogin = time.Now().UTC()
	return svc.repo.UpdateAccount(acct, nil)
}

func (svc *service) RequestPasswordReset(email string) error {
	acct, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(acct)
	return nil
}

func (svc *service) ResetPassword(rp ResetAccountPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return errInvalidToken
	}
	acct, err := svc.repo.GetAccountByID(id)
	if err != nil {
		if err == ErrNotFound {
			return errInvalidToken
		}
		return err
	}
	if err = verifyToken(acct, rp.Token); err != nil {
		return err
	}
	if err = acct.SetPassword(rp.Password); err != nil {
		return err
	}
	acct.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateAccount(acct, nil)
	return err
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteAccountsByID(ids...)
}

func (svc *service) sendVerificationMail(acct Account) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Confirm your email address",
		TemplateName: "account-verification",
		TemplateData: struct {
			Name           string
			Token          string
			ExpiresInHours int
		}{acct.Name, acct.VerificationToken, int(verificationTimeoutDelta.Hours())},
	})
}

func (svc *service) sendPasswordResetMail(acct Account) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Password reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{acct.Name, EncodeUID(acct), makeToken(acct)},
	})
}
