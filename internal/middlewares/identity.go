package middlewares

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cast"
)

const (
	localsEmployeeID = "employeeId"
	localsIsAdmin    = "isAdmin"

	roleAdmin = "admin"
)

// Identity authenticates requests with a bearer token signed by the HR
// gateway. Claims: sub is the employee id, role is "employee" or "admin".
func Identity(secret string) fiber.Handler {
	key := []byte(secret)
	return func(ctx *fiber.Ctx) error {
		header := ctx.Get(fiber.HeaderAuthorization)
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			return fiber.ErrUnauthorized
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			return fiber.ErrUnauthorized
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.ErrUnauthorized
		}
		employeeID := cast.ToUint(claims["sub"])
		if employeeID == 0 {
			return fiber.ErrUnauthorized
		}

		ctx.Locals(localsEmployeeID, employeeID)
		ctx.Locals(localsIsAdmin, cast.ToString(claims["role"]) == roleAdmin)
		return ctx.Next()
	}
}

// RequireAdmin rejects requests whose token lacks the admin role. Must run
// after Identity.
func RequireAdmin() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if !IsAdmin(ctx) {
			return fiber.ErrForbidden
		}
		return ctx.Next()
	}
}

// EmployeeID returns the authenticated employee id, zero when unauthenticated.
func EmployeeID(ctx *fiber.Ctx) uint {
	return cast.ToUint(ctx.Locals(localsEmployeeID))
}

func IsAdmin(ctx *fiber.Ctx) bool {
	return cast.ToBool(ctx.Locals(localsIsAdmin))
}
