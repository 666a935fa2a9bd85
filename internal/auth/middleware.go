package auth

import (
	"errors"
	"strings"

	"cylinder-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const CtxPrincipalKey = "principal"

// Principal is the authenticated caller taken from the token.
type Principal struct {
	UserID          uint
	CompanyID       uint
	BranchID        uint
	Email           string
	RoleName        string
	PermissionLevel int
}

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.Unauthorized("No token provided. Please login first.")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return apperr.Unauthorized("Authorization header must be 'Bearer <token>'")
		}

		claims, err := ParseToken(secret, strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return apperr.Unauthorized("Token expired. Please login again.")
			}
			return apperr.Unauthorized("Invalid token")
		}

		c.Locals(CtxPrincipalKey, &Principal{
			UserID:          claims.UserID,
			CompanyID:       claims.CompanyID,
			BranchID:        claims.BranchID,
			Email:           claims.Email,
			RoleName:        claims.RoleName,
			PermissionLevel: claims.PermissionLevel,
		})
		return c.Next()
	}
}

// PrincipalFrom returns the caller set by JWTMiddleware, or nil.
func PrincipalFrom(c *fiber.Ctx) *Principal {
	p, _ := c.Locals(CtxPrincipalKey).(*Principal)
	return p
}

func MustPrincipal(c *fiber.Ctx) (*Principal, error) {
	p := PrincipalFrom(c)
	if p == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return p, nil
}

func RequirePermission(min int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := MustPrincipal(c)
		if err != nil {
			return err
		}
		if p.PermissionLevel < min {
			return apperr.Forbidden("You do not have permission for this action")
		}
		return c.Next()
	}
}
