package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"clinic-relay/domain"
	"clinic-relay/errors"
	"clinic-relay/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_And_ComparePassword(t *testing.T) {
	req := require.New(t)
	password := "Sup3rS3cure!Password"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong-password", hash)
	req.NoError(err)
	req.False(match)
}

func TestComparePassword_InvalidFormat(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "not-a-hash")
	req.Error(err)
}

func TestGenerateToken_And_ValidateToken(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("doc-1", "doc@example.com", []string{"doctor"}, time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("doc-1", claims.UserID)
	req.Equal("doc@example.com", claims.Email)
	req.Equal([]string{"doctor"}, claims.Roles)
	req.Equal("clinic-relay", claims.Issuer)
}

func TestValidateToken_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("doc-1", "doc@example.com", []string{"doctor"}, -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestValidateRegister(t *testing.T) {
	req := require.New(t)

	// Complex enough
	req.NoError(ValidateRegister(RegisterRequest{
		Email:    "doc@example.com",
		Password: "Sup3rS3cure!Password",
	}))

	// Missing complexity classes
	err := ValidateRegister(RegisterRequest{
		Email:    "doc@example.com",
		Password: "alllowercasebutlong",
	})
	req.ErrorIs(err, errors.ErrInvalidPassword)

	// Too short, caught by struct validation before complexity
	req.Error(ValidateRegister(RegisterRequest{
		Email:    "doc@example.com",
		Password: "Ab1!",
	}))

	// Not an email
	req.Error(ValidateRegister(RegisterRequest{
		Email:    "not-an-email",
		Password: "Sup3rS3cure!Password",
	}))
}

func TestDirectoryValidator(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	profiles := repositories.NewProfileRepository(db)
	validator := NewDirectoryValidator(log, profiles)

	req.NoError(profiles.PutDoctor(domain.DoctorProfile{ID: "doc-1", Name: "Dr. Mamour"}))

	// A directory doctor is validated
	profile, err := validator.Validate(context.Background(), "doc-1")
	req.NoError(err)
	req.Equal("Dr. Mamour", profile.Name)

	// An unknown doctor is refused
	_, err = validator.Validate(context.Background(), "doc-ghost")
	req.ErrorIs(err, errors.ErrProfileNotFound)
}
