package middleware

import (
	"context"
	"errors"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// TokenVerifier verifies Firebase ID tokens. *auth.Client implements it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// UserByFirebaseUID looks up the local account linked to a Firebase user
type UserByFirebaseUID interface {
	GetUserByFirebaseUID(firebaseUID string) (*models.User, error)
}

// FirebaseResolver maps a Firebase ID token to the claims of the linked local
// user. Accounts are linked by the /auth/firebase-login endpoint.
type FirebaseResolver struct {
	verifier TokenVerifier
	users    UserByFirebaseUID
}

func NewFirebaseResolver(verifier TokenVerifier, users UserByFirebaseUID) *FirebaseResolver {
	return &FirebaseResolver{verifier: verifier, users: users}
}

func (r *FirebaseResolver) Resolve(ctx context.Context, idToken string) (*models.JwtCustomClaims, error) {
	token, err := r.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, unauthorized("Invalid or expired ID token")
	}

	user, err := r.users.GetUserByFirebaseUID(token.UID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unauthorized("Firebase account is not linked, call /auth/firebase-login first")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to load user")
	}

	return &models.JwtCustomClaims{UserID: user.ID, Email: user.Email}, nil
}
