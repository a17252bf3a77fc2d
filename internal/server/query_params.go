package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/pkg/db/pagination"
)

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

// parseLimit reads ?limit= and clamps it to the page bounds.
func parseLimit(value string) (int, error) {
	limit, err := parseOptionalInt(value)
	if err != nil || limit < 0 {
		return 0, newValidationError("limit", "limit must be a non-negative integer")
	}
	return pagination.ClampLimit(limit), nil
}

// parseDeadLetterCursor decodes a page token into the (time, id) position
// of the last row already returned.
func parseDeadLetterCursor(token string) (*time.Time, snowflake.ID, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, 0, nil
	}
	invalid := newValidationError("page_token", "page_token is invalid")

	cursor, err := pagination.DecodeCursor(trimmed)
	if err != nil {
		return nil, 0, invalid
	}
	at, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	if err != nil {
		return nil, 0, invalid
	}
	id, err := snowflake.ParseString(cursor.ID)
	if err != nil {
		return nil, 0, invalid
	}
	return &at, id, nil
}
