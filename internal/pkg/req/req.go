/*
Package req provides helpers for decoding HTTP request input.
*/
package req

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"roomhub/internal/pkg/errs"
)

// MaxJSONBodyBytes bounds every JSON request body.
const MaxJSONBodyBytes int64 = 1 << 20

// BindJSON decodes the request body into dst, rejecting unknown fields and trailing data.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat).WithCause(err)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// QueryInt parses an optional integer query parameter, returning def when it is absent.
func QueryInt(r *http.Request, key string, def int) (int, *errs.CustomError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.NewError(errs.ErrInvalidParams).WithCause(fmt.Errorf("query %s: %w", key, err))
	}
	return v, nil
}
