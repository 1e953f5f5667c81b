package main

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when authentication fails. The same error
// covers unknown users and wrong passwords so responses don't leak which
// usernames exist.
var ErrBadCredentials = errors.New("invalid username or password")

// Account is an entry in the credential directory. Roles are plain strings
// without any framework prefix.
type Account struct {
	Username     string
	PasswordHash string
	Roles        []string
}

// PrimaryRole picks the role embedded into issued tokens, preferring ADMIN.
func (a *Account) PrimaryRole() string {
	for _, r := range a.Roles {
		if r == "ADMIN" {
			return r
		}
	}
	if len(a.Roles) > 0 {
		return a.Roles[0]
	}
	return "USER"
}

// UserDirectory verifies credentials against a fixed set of accounts. The
// token subsystem only needs authenticate-and-get-role; credential storage
// beyond this directory is out of scope.
type UserDirectory struct {
	accounts map[string]*Account
}

func NewUserDirectory() *UserDirectory {
	d := &UserDirectory{accounts: make(map[string]*Account)}
	d.seed("user", "password", "USER")
	d.seed("admin", "admin123", "ADMIN", "USER")
	return d
}

func (d *UserDirectory) seed(username, password string, roles ...string) {
	hash, err := hashPassword(password)
	if err != nil {
		logger.Fatalf("seeding user directory: %v", err)
	}
	d.accounts[username] = &Account{Username: username, PasswordHash: hash, Roles: roles}
}

// Authenticate verifies username/password and returns the account.
func (d *UserDirectory) Authenticate(username, password string) (*Account, error) {
	account, ok := d.accounts[username]
	if !ok || !comparePassword(account.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return account, nil
}

// Lookup returns the account for username without checking credentials.
func (d *UserDirectory) Lookup(username string) (*Account, bool) {
	account, ok := d.accounts[username]
	return account, ok
}

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

func comparePassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}
