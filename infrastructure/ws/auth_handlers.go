package ws

import (
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"net/http"

	"clinic-relay/errors"
	"clinic-relay/services"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// RegisterAuthRoutes mounts the portal account endpoints next to the
// WebSocket endpoint.
func RegisterAuthRoutes(mux *http.ServeMux, log *slog.Logger, authService services.IAuthService) {
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		handleCredentials(w, r, log, authService.Register)
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		handleCredentials(w, r, log, authService.Login)
	})
}

func handleCredentials(w http.ResponseWriter, r *http.Request, log *slog.Logger,
	fn func(email, password string) (services.Token, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	token, err := fn(req.Email, req.Password)
	if err != nil {
		log.Debug("Credential request refused", "error", err)
		http.Error(w, err.Error(), authStatusCode(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tokenResponse{Token: string(token)})
}

func authStatusCode(err error) int {
	switch {
	case goerrors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case goerrors.Is(err, errors.ErrAccountAlreadyExists):
		return http.StatusConflict
	case goerrors.Is(err, errors.ErrInvalidPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
