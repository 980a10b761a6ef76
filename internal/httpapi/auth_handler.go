package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat_gateway/internal/auth"
	"chat_gateway/internal/credits"
	"chat_gateway/internal/middleware"
	"chat_gateway/internal/models"
	"chat_gateway/internal/utils"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Credits   int        `json:"credits"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

type authResponse struct {
	Message string   `json:"message"`
	User    userView `json:"user"`
	Token   string   `json:"token"`
	Exp     int64    `json:"exp"`
}

// handleRegister serves POST /api/auth/register. New accounts start with the
// configured credit balance.
func (d *Dependencies) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Username == "" || body.Email == "" || body.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to process password")
		return
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     body.Username,
		Email:        strings.ToLower(body.Email),
		PasswordHash: hash,
		Credits:      d.Config.StartingCredits,
		CreatedAt:    time.Now(),
	}

	ctx := r.Context()
	if err := d.Users.Create(ctx, user); err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			utils.RespondWithError(w, http.StatusBadRequest, "email already registered")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if err := d.Ledger.CreateAccount(ctx, user.ID.String(), d.Config.StartingCredits); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to create credit account")
		return
	}

	token, exp, err := auth.GenerateToken(user.ID.String(), user.Email, d.Config.JWTSecret, d.Config.TokenTTL)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, authResponse{
		Message: "registration successful",
		User:    d.viewOf(r, user),
		Token:   token,
		Exp:     exp,
	})
}

// handleLogin serves POST /api/auth/login. Login never mutates the credit
// balance; it only stamps the last login time.
func (d *Dependencies) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Email == "" || body.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx := r.Context()
	user, err := d.Users.GetByEmail(ctx, body.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, body.Password) {
		// Same response for unknown email and wrong password.
		utils.RespondWithError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	now := time.Now()
	if err := d.Users.UpdateLastLogin(ctx, user.ID.String(), now); err != nil {
		d.Logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	token, exp, err := auth.GenerateToken(user.ID.String(), user.Email, d.Config.JWTSecret, d.Config.TokenTTL)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, authResponse{
		Message: "login successful",
		User:    d.viewOf(r, user),
		Token:   token,
		Exp:     exp,
	})
}

// handleUserProfile serves GET /api/auth/user for the authenticated caller.
func (d *Dependencies) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := d.Users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "user not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"user": d.viewOf(r, user)})
}

// viewOf builds the outward user representation. The credit balance comes
// from the ledger, which is the single authority for it.
func (d *Dependencies) viewOf(r *http.Request, user *models.User) userView {
	balance, err := d.Ledger.Balance(r.Context(), user.ID.String())
	if err != nil {
		if !errors.Is(err, credits.ErrAccountNotFound) {
			d.Logger.Warn("failed to read balance", "user_id", user.ID, "error", err)
		}
		balance = user.Credits
	}
	return userView{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Credits:   balance,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLoginAt,
	}
}
