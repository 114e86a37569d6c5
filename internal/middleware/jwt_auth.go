package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/anonto42/connect-hub/backend/internal/apperrors"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const userContextKey = "user"

// JWTAuthMiddleware checks for a valid token and stores the caller's claims in
// the context. The token is read from the Authorization header, or from the
// "token" query parameter for WebSocket and SSE clients that cannot set
// headers. When firebase is non-nil, a token that is not a local JWT is tried
// as a Firebase ID token.
func JWTAuthMiddleware(jwtSecret string, firebase *FirebaseResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := extractToken(c)
			if err != nil {
				return err
			}

			claims, err := ParseToken(tokenString, jwtSecret)
			if err != nil && firebase != nil {
				claims, err = firebase.Resolve(c.Request().Context(), tokenString)
			}
			if err != nil {
				return err
			}

			c.Set(userContextKey, claims)
			return next(c)
		}
	}
}

func extractToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if q := c.QueryParam("token"); q != "" {
			return q, nil
		}
		return "", unauthorized("Missing Authorization header")
	}

	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", unauthorized("Invalid Authorization header format")
	}
	return parts[1], nil
}

// ParseToken validates an HS256 token signed with jwtSecret
func ParseToken(tokenString, jwtSecret string) (*models.JwtCustomClaims, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, unauthorized("Unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, unauthorized("Invalid token signature")
		}
		return nil, unauthorized("Invalid token")
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, unauthorized("Invalid token")
	}
	return claims, nil
}

// SignToken issues an HS256 token for user valid for ttl
func SignToken(user *models.User, jwtSecret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.JwtCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

// GetUserID returns the authenticated caller's id
func GetUserID(c echo.Context) (uint, error) {
	claims, ok := c.Get(userContextKey).(*models.JwtCustomClaims)
	if !ok || claims == nil || claims.UserID == 0 {
		return 0, unauthorized("Unauthorized")
	}
	return claims.UserID, nil
}

// SetUserID stores claims for userID, e.g. in handler tests
func SetUserID(c echo.Context, userID uint) {
	c.Set(userContextKey, &models.JwtCustomClaims{UserID: userID})
}

func unauthorized(message string) *echo.HTTPError {
	return apperrors.ToHTTPError(apperrors.Unauthorized(message))
}
