package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/pagination"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParsePagination reads ?page= and ?limit=.
func ParsePagination(r *http.Request) (pagination.Params, error) {
	page, err := ParseQueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return pagination.Params{}, err
	}
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Limit: limit}, nil
}

// ParseQueryUUID reads a required uuid query parameter.
func ParseQueryUUID(r *http.Request, key string) (uuid.UUID, error) {
	return parseUUID(r.URL.Query().Get(key), key)
}

// ParseURLUUID reads a uuid chi path parameter.
func ParseURLUUID(r *http.Request, key string) (uuid.UUID, error) {
	return parseUUID(chi.URLParam(r, key), key)
}

func parseUUID(raw, key string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, key+" is required").WithDetails(map[string]any{"field": key})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key).WithDetails(map[string]any{"field": key})
	}
	return id, nil
}
