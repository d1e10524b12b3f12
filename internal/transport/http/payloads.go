package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var errInvalidPayload = errors.New("invalid payload")

var validate = validator.New()

// submitRequest is the body of a submit. The idempotency key may also come
// from the Idempotency-Key header.
type submitRequest struct {
	Answers        map[string]string `json:"answers" validate:"dive,keys,required,endkeys,required"`
	IdempotencyKey string            `json:"idempotencyKey" validate:"omitempty,max=128"`
}

// decodeBody reads an optional JSON body into dst and validates it. An empty
// body leaves dst at its zero value.
func decodeBody(r *http.Request, dst any) error {
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %v", errInvalidPayload, err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}
