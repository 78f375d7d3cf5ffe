package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasa/backend/core/account"
)

type accountRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Username           string         `db:"username"`
	Email              string         `db:"email"`
	IsActive           bool           `db:"is_active"`
	EmailVerified      bool           `db:"email_verified"`
	Roles              pq.StringArray `db:"roles"`
	PasswordHash       []byte         `db:"password_hash"`
	VerificationToken  null.String    `db:"verification_token"`
	VerificationExpiry null.Time      `db:"verification_expiry"`
	CreatedAt          null.Time      `db:"created_at"`
	UpdatedAt          null.Time      `db:"updated_at"`
	LastLogin          null.Time      `db:"last_login"`
}

func (row accountRow) toAccount() account.Account {
	return account.Account{
		ID:                 row.ID,
		Name:               row.Name,
		Username:           row.Username,
		Email:              row.Email,
		IsActive:           row.IsActive,
		EmailVerified:      row.EmailVerified,
		Roles:              row.Roles,
		PasswordHash:       row.PasswordHash,
		VerificationToken:  row.VerificationToken.String,
		VerificationExpiry: row.VerificationExpiry.Time,
		CreatedAt:          row.CreatedAt.Time,
		UpdatedAt:          row.UpdatedAt.Time,
		LastLogin:          row.LastLogin.Time,
	}
}

func newAccountRow(acct account.Account) accountRow {
	return accountRow{
		ID:                 acct.ID,
		Name:               acct.Name,
		Username:           acct.Username,
		Email:              acct.Email,
		IsActive:           acct.IsActive,
		EmailVerified:      acct.EmailVerified,
		Roles:              acct.Roles,
		PasswordHash:       acct.PasswordHash,
		VerificationToken:  null.NewString(acct.VerificationToken, acct.VerificationToken != ""),
		VerificationExpiry: null.NewTime(acct.VerificationExpiry, !acct.VerificationExpiry.IsZero()),
		CreatedAt:          null.TimeFrom(acct.CreatedAt),
		UpdatedAt:          null.TimeFrom(acct.UpdatedAt),
		LastLogin:          null.NewTime(acct.LastLogin, !acct.LastLogin.IsZero()),
	}
}

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sql.DB) account.Repository {
	return &accountRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *accountRepository) CheckUsernameUniqueness(username, email string, excludedAccounts ...account.Account) error {
	exclIDs := make([]string, 0, len(excludedAccounts))
	for _, acct := range excludedAccounts {
		exclIDs = append(exclIDs, acct.ID)
	}

	check := func(column, value string) (bool, error) {
		if value == "" {
			return false, nil
		}
		query := `SELECT EXISTS (SELECT 1 FROM account WHERE ` + column + ` = ?)`
		args := []interface{}{value}
		if len(exclIDs) > 0 {
			query = `SELECT EXISTS (SELECT 1 FROM account WHERE ` + column + ` = ? AND id NOT IN (?))`
			var err error
			if query, args, err = sqlx.In(query, value, exclIDs); err != nil {
				return false, err
			}
		}
		var exists bool
		err := repo.db.Get(&exists, repo.db.Rebind(query), args...)
		return exists, err
	}

	if exists, err := check("username", username); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	} else if exists {
		return account.ErrUsernameExists
	}
	if exists, err := check("email", email); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	} else if exists {
		return account.ErrEmailExists
	}
	return nil
}

func (repo *accountRepository) CreateAccount(acct account.Account) (account.Account, error) {
	query := `
		INSERT INTO account (id, name, username, email, is_active, email_verified, roles, password_hash,
		                     verification_token, verification_expiry, created_at, updated_at, last_login)
		VALUES (:id, :name, :username, :email, :is_active, :email_verified, :roles, :password_hash,
		        :verification_token, :verification_expiry, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExec(query, newAccountRow(acct)); err != nil {
		return account.Account{}, errors.Wrap(err, "creating account")
	}
	return acct, nil
}

func (repo *accountRepository) getWhere(clause string, args ...interface{}) (account.Account, error) {
	var row accountRow
	if err := repo.db.Get(&row, `SELECT * FROM account WHERE `+clause, args...); err != nil {
		if err == sql.ErrNoRows {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "getting account")
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) GetAccountByID(id string) (account.Account, error) {
	return repo.getWhere(`id = $1`, id)
}

func (repo *accountRepository) GetAccountByEmail(email string) (account.Account, error) {
	return repo.getWhere(`email = $1`, email)
}

func (repo *accountRepository) GetAccountByUsernameOrEmail(username string) (account.Account, error) {
	return repo.getWhere(`username = $1 OR email = $1`, username)
}

func (repo *accountRepository) GetAccountByVerificationToken(token string) (account.Account, error) {
	return repo.getWhere(`verification_token = $1`, token)
}

func (repo *accountRepository) FilterAccounts(filter account.QueryFilter) ([]account.Account, error) {
	query := `SELECT * FROM account WHERE 1=1`
	var args []interface{}

	if filter.Search != "" {
		query += ` AND (name ILIKE ? OR username ILIKE ? OR email ILIKE ?)`
		kw := "%" + filter.Search + "%"
		args = append(args, kw, kw, kw)
	}
	if len(filter.Roles) > 0 {
		// prefix match so portal roles ("teacher:") match sub-roles too
		query += ` AND EXISTS (SELECT 1 FROM unnest(roles) AS r WHERE `
		for i, role := range filter.Roles {
			if i > 0 {
				query += ` OR `
			}
			query += `r LIKE ?`
			args = append(args, role+"%")
		}
		query += `)`
	}
	if filter.IsActive != nil {
		query += ` AND is_active = ?`
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, filter.CreatedTo.UTC())
	}
	query += ` ORDER BY created_at`

	var rows []accountRow
	if err := repo.db.Select(&rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering accounts")
	}
	accts := make([]account.Account, len(rows))
	for i, row := range rows {
		accts[i] = row.toAccount()
	}
	return accts, nil
}

func (repo *accountRepository) UpdateAccount(acct account.Account, isActive *bool) (account.Account, error) {
	// read-merge-write; only set fields overwrite
	orig, err := repo.GetAccountByID(acct.ID)
	if err != nil {
		return account.Account{}, err
	}
	if acct.Roles != nil {
		orig.Roles = acct.Roles
	}
	if acct.PasswordHash != nil {
		orig.PasswordHash = acct.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	// verification is one-way
	if acct.EmailVerified {
		orig.EmailVerified = true
		orig.VerificationToken = ""
		orig.VerificationExpiry = time.Time{}
	}
	if !acct.LastLogin.IsZero() {
		orig.LastLogin = acct.LastLogin
	}
	orig.Name = acct.Name
	orig.Username = acct.Username
	orig.Email = acct.Email
	orig.UpdatedAt = acct.UpdatedAt

	query := `
		UPDATE account
		SET name = :name, username = :username, email = :email, is_active = :is_active,
		    email_verified = :email_verified, roles = :roles, password_hash = :password_hash,
		    verification_token = :verification_token, verification_expiry = :verification_expiry,
		    updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	if _, err = repo.db.NamedExec(query, newAccountRow(orig)); err != nil {
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	return orig, nil
}

func (repo *accountRepository) DeleteAccountsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM account WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting accounts")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting accounts")
	}
	return nil
}
