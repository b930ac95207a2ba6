package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omchandarana/geogate/internal/apperr"
	"github.com/omchandarana/geogate/internal/domain/user"
	"github.com/omchandarana/geogate/internal/http/middlewares"
	"github.com/omchandarana/geogate/internal/http/respond"
	"github.com/omchandarana/geogate/internal/repo/postgres"
	"github.com/omchandarana/geogate/internal/security"
)

// Small interfaces so tests can fake the store and token service.

type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type TokenIssuer interface {
	Issue(userID int64, email string) (string, error)
}

type AuthHandler struct {
	users      UserStore
	tokens     TokenIssuer
	bcryptCost int
	em         *respond.ErrorMapper
}

func NewAuthHandler(users UserStore, tokens TokenIssuer, bcryptCost int, em *respond.ErrorMapper) *AuthHandler {
	return &AuthHandler{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		em:         em,
	}
}

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" binding:"omitempty,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

const storeTimeout = 3 * time.Second

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !h.em.BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	// Early duplicate check for a friendly fast path; the unique index still
	// backstops the check-then-insert race below.
	_, err := h.users.GetByEmail(cctx, req.Email)

	if err == nil {
		h.em.Fail(ctx, apperr.New(apperr.KindDuplicateEmail, "Email is already registered"))
		return
	}

	if !errors.Is(err, postgres.ErrUserNotFound) {
		h.em.Fail(ctx, apperr.Wrap(apperr.KindStoreUnavailable, "Service temporarily unavailable", err))
		return
	}

	hash, err := security.HashPassword(req.Password, h.bcryptCost)

	if err != nil {
		h.em.Fail(ctx, apperr.Wrap(apperr.KindInternal, "Could not create user", err))
		return
	}

	u, err := h.users.Create(cctx, req.Email, hash)

	if err != nil {
		if errors.Is(err, postgres.ErrEmailTaken) {
			h.em.Fail(ctx, apperr.New(apperr.KindDuplicateEmail, "Email is already registered"))
			return
		}

		h.em.Fail(ctx, apperr.Wrap(apperr.KindStoreUnavailable, "Service temporarily unavailable", err))
		return
	}

	token, err := h.tokens.Issue(u.ID, u.Email)

	if err != nil {
		h.em.Fail(ctx, apperr.Wrap(apperr.KindInternal, "Could not generate token", err))
		return
	}

	respond.OK(ctx, http.StatusCreated, gin.H{
		"user": gin.H{
			"id":    u.ID,
			"email": u.Email,
		},
		"token": token,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !h.em.BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			// Same error as a wrong password so responses never reveal
			// whether the email exists.
			h.em.Fail(ctx, apperr.New(apperr.KindInvalidCredentials, "Email or password is incorrect"))
			return
		}

		h.em.Fail(ctx, apperr.Wrap(apperr.KindStoreUnavailable, "Service temporarily unavailable", err))
		return
	}

	ok, err := security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		h.em.Fail(ctx, apperr.Wrap(apperr.KindCorruptCredential, "Something went wrong", err))
		return
	}

	if !ok {
		h.em.Fail(ctx, apperr.New(apperr.KindInvalidCredentials, "Email or password is incorrect"))
		return
	}

	token, err := h.tokens.Issue(foundUser.ID, foundUser.Email)

	if err != nil {
		h.em.Fail(ctx, apperr.Wrap(apperr.KindInternal, "Could not generate token", err))
		return
	}

	respond.OK(ctx, http.StatusOK, gin.H{
		"user": gin.H{
			"id":    foundUser.ID,
			"email": foundUser.Email,
		},
		"token": token,
	})
}

// ValidateToken runs behind the auth gate, which already verified the
// token. Re-fetching the user catches accounts that vanished after issue,
// since the token itself stays cryptographically valid until expiry.
func (h *AuthHandler) ValidateToken(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		h.em.Fail(ctx, apperr.New(apperr.KindInternal, "Something went wrong"))
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			h.em.Fail(ctx, apperr.New(apperr.KindUserNotFound, "User not found"))
			return
		}

		h.em.Fail(ctx, apperr.Wrap(apperr.KindStoreUnavailable, "Service temporarily unavailable", err))
		return
	}

	respond.OK(ctx, http.StatusOK, gin.H{
		"user": gin.H{
			"id":        u.ID,
			"email":     u.Email,
			"createdAt": u.CreatedAt,
		},
	})
}
