//go:generate go run go.uber.org/mock/mockgen -source=account.go -destination=../mocks/mock_account_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"clinic-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IAccountRepository interface {
	CreateAccount(email, hashedPassword string) (string, error)
	GetAccountByEmail(email string) (Account, error)
}

// Account is a doctor portal login account, distinct from the directory
// profile a doctor is validated against at relay connect time.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

type AccountRepository struct {
	db *badger.DB
}

func NewAccountRepository(db *badger.DB) IAccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount persists the account and returns the newly generated ID.
func (a AccountRepository) CreateAccount(email, hashedPassword string) (string, error) {
	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"doctor"},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(account)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		key := []byte("account:" + email)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrAccountAlreadyExists
		}
		return txn.Set(key, data)
	})

	return account.ID, err
}

func (a AccountRepository) GetAccountByEmail(email string) (Account, error) {
	var account Account

	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("account:" + email))
		if err != nil {
			return err // Handled as ErrInvalidCredentials by the service
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &account)
		})
	})
	if err != nil {
		return Account{}, err
	}

	return account, nil
}
