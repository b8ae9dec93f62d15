package repositories

import (
	"testing"

	"clinic-relay/domain"
	"clinic-relay/errors"

	"github.com/stretchr/testify/require"
)

func TestAccountRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	repo := NewAccountRepository(testDB(t))

	id, err := repo.CreateAccount("doc@example.com", "hashed")
	req.NoError(err)
	req.NotEmpty(id)

	account, err := repo.GetAccountByEmail("doc@example.com")
	req.NoError(err)
	req.Equal(id, account.ID)
	req.Equal("hashed", account.PasswordHash)
	req.Contains(account.Roles, "doctor")
}

func TestAccountRepository_DuplicateEmailRejected(t *testing.T) {
	req := require.New(t)
	repo := NewAccountRepository(testDB(t))

	_, err := repo.CreateAccount("doc@example.com", "h1")
	req.NoError(err)

	_, err = repo.CreateAccount("doc@example.com", "h2")
	req.ErrorIs(err, errors.ErrAccountAlreadyExists)
}

func TestProfileRepository_DoctorRoundTrip(t *testing.T) {
	req := require.New(t)
	repo := NewProfileRepository(testDB(t))

	profile := domain.DoctorProfile{ID: "doc-1", Name: "Dr. Who", Specialty: "Cardiology"}
	req.NoError(repo.PutDoctor(profile))

	found, err := repo.GetDoctor("doc-1")
	req.NoError(err)
	req.Equal(profile, found)
}

func TestProfileRepository_UnknownPatient(t *testing.T) {
	req := require.New(t)
	repo := NewProfileRepository(testDB(t))

	_, err := repo.GetPatient("ghost")
	req.ErrorIs(err, errors.ErrProfileNotFound)
}
