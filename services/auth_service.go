package services

import (
	"fmt"
	"time"

	"clinic-relay/auth"
	"clinic-relay/errors"
	"clinic-relay/repositories"
)

type IAuthService interface {
	Login(email, password string) (Token, error)
	Register(email, password string) (Token, error)
}

type AuthService struct {
	accountRepository repositories.IAccountRepository
	tokenDuration     time.Duration
}

type Token string

func NewAuthService(repo repositories.IAccountRepository, tokenDuration time.Duration) IAuthService {
	return &AuthService{accountRepository: repo, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(email, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Email:    email,
		Password: password,
	}

	// Validate before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens in the service layer so the repository never sees
	// a plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	accountID, err := s.accountRepository.CreateAccount(email, hashedPassword)
	if err != nil {
		return "", err // Propagates ErrAccountAlreadyExists if email is taken
	}

	token, err := auth.GenerateToken(accountID, email, []string{"doctor"}, s.tokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	account, err := s.accountRepository.GetAccountByEmail(email)
	if err != nil {
		// Generic error to prevent account enumeration
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, account.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(account.ID, account.Email, account.Roles, s.tokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}
