package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad"), fiber.StatusBadRequest},
		{"unauthorized", Unauthorized("no"), fiber.StatusUnauthorized},
		{"forbidden", Forbidden("no"), fiber.StatusForbidden},
		{"not found", NotFound("gone"), fiber.StatusNotFound},
		{"conflict", Conflict("dup"), fiber.StatusConflict},
		{"wrapped not found", fmt.Errorf("tx: %w", NotFound("gone")), fiber.StatusNotFound},
		{"fiber error", fiber.NewError(fiber.StatusRequestEntityTooLarge, "big"), fiber.StatusRequestEntityTooLarge},
		{"plain", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestFromDB(t *testing.T) {
	assert.Nil(t, FromDB(nil, "x"))
	assert.Equal(t, CodeNotFound, CodeOf(FromDB(gorm.ErrRecordNotFound, "Cylinder not found")))
	assert.Equal(t, CodeConflict, CodeOf(FromDB(gorm.ErrDuplicatedKey, "x")))
	assert.Equal(t, CodeUnexpected, CodeOf(FromDB(errors.New("driver"), "x")))

	orig := Forbidden("scope")
	assert.Same(t, orig, FromDB(orig, "x"))
}

func TestWrap_KeepsAppError(t *testing.T) {
	orig := Validation("owner_type is required")
	assert.Same(t, orig, Wrap(orig, "create cylinder"))

	wrapped := Wrap(errors.New("io"), "create cylinder")
	assert.True(t, Is(wrapped, CodeUnexpected))
	assert.Nil(t, Wrap(nil, "x"))
}
