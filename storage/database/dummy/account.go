package dummydb

import (
	"sort"
	"strings"
	"time"

	"github.com/darasa/backend/core/account"
)

type accountRepository struct {
	db *accountTable
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) query() []account.Account {
	accts := make([]account.Account, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		accts = append(accts, *a)
	}
	return accts
}

func (repo *accountRepository) CheckUsernameUniqueness(username, email string, excludedAccounts ...account.Account) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclLen := len(excludedAccounts)
	if exclLen > 1 {
		sort.Slice(excludedAccounts, func(i, j int) bool { return excludedAccounts[i].ID < excludedAccounts[j].ID })
	}

	for _, acct := range repo.query() {
		if isExcluded(acct, excludedAccounts, exclLen) {
			continue
		}
		if username != "" && acct.Username == username {
			return account.ErrUsernameExists
		}
		if email != "" && acct.Email == email {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(acct account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) GetAccountByID(id string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acct, ok := repo.db.table[id]; ok {
		return *acct, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByEmail(email string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if acct.Email == email {
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByUsernameOrEmail(username string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if (acct.Username == username) || (acct.Email == username) {
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByVerificationToken(token string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if acct.VerificationToken != "" && acct.VerificationToken == token {
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) FilterAccounts(filter account.QueryFilter) ([]account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	accts := repo.query()

	// accounts with search keyword matching any Name, Username or Email ?
	if filter.Search != "" {
		var filtered []account.Account
		for _, a := range accts {
			if strings.Contains(strings.ToLower(a.Username), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(a.Email), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(a.Name), strings.ToLower(filter.Search)) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	// accounts with any of the specified roles
	if accts != nil && len(filter.Roles) > 0 {
		var filtered []account.Account
		for _, a := range accts {
			for _, r := range filter.Roles {
				if a.RoleStartsWith(r) {
					filtered = append(filtered, a)
					break
				}
			}
		}
		accts = filtered
	}
	if accts != nil && filter.IsActive != nil {
		var filtered []account.Account
		for _, a := range accts {
			if a.IsActive == *filter.IsActive {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && !filter.CreatedFrom.IsZero() {
		var filtered []account.Account
		timeUTC := filter.CreatedFrom.UTC()
		for _, a := range accts {
			if a.CreatedAt.Equal(timeUTC) || a.CreatedAt.After(timeUTC) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && !filter.CreatedTo.IsZero() {
		var filtered []account.Account
		timeUTC := filter.CreatedTo.UTC()
		for _, a := range accts {
			if a.CreatedAt.Before(timeUTC) || a.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}

	return accts, nil
}

func (repo *accountRepository) UpdateAccount(acct account.Account, isActive *bool) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	orig, ok := repo.db.table[acct.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
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

	repo.db.table[acct.ID] = orig
	return *orig, nil
}

func (repo *accountRepository) DeleteAccountsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func isExcluded(acct account.Account, excludedAccounts []account.Account, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excludedAccounts[i].ID >= acct.ID })
	return idx < n && excludedAccounts[idx].ID == acct.ID
}
