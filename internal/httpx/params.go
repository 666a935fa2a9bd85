package httpx

import (
	"strconv"
	"strings"

	"cylinder-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

const RequestIDKey = "request_id"

type Paging struct {
	Page   int
	Limit  int
	Offset int
}

type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

func (p Paging) Meta(total int64) PageMeta {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return PageMeta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}

// ResolvePaging reads ?page= and ?limit= (alias ?page_size=).
func ResolvePaging(c *fiber.Ctx, defaultLimit, maxLimit int) Paging {
	page, _ := strconv.Atoi(strings.TrimSpace(c.Query("page", "1")))
	if page < 1 {
		page = 1
	}

	limitStr := strings.TrimSpace(c.Query("limit"))
	if limitStr == "" {
		limitStr = strings.TrimSpace(c.Query("page_size"))
	}
	limit, _ := strconv.Atoi(limitStr)
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return Paging{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// ParamID parses a positive numeric route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid " + name)
	}
	return uint(id), nil
}

// QueryUint returns nil when the query value is missing or not a positive integer.
func QueryUint(c *fiber.Ctx, name string) *uint {
	return ParseUint(c.Query(name))
}

func ParseUint(raw string) *uint {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil
	}
	id := uint(v)
	return &id
}

// QueryBool parses 1/0/true/false/yes/no; anything else is nil.
func QueryBool(c *fiber.Ctx, name string) *bool {
	return ParseBool(c.Query(name))
}

func ParseBool(raw string) *bool {
	var v bool
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		v = true
	case "0", "false", "no":
		v = false
	default:
		return nil
	}
	return &v
}
