package auth

import (
	"cylinder-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func RegisterHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		res, err := svc.Register(c.UserContext(), body)
		if err != nil {
			return err
		}
		return httpx.Created(c, "User registered successfully", res)
	}
}

func LoginHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		res, err := svc.Login(c.UserContext(), body.Email, body.Password)
		if err != nil {
			return err
		}
		return httpx.Success(c, "Login successful", res)
	}
}

func MeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := MustPrincipal(c)
		if err != nil {
			return err
		}
		res, err := svc.Me(c.UserContext(), p.UserID)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", res)
	}
}
