package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/josephgoksu/Wayline/internal/utils"
)

// validate is shared by structured calls; it caches struct info.
var validate = validator.New()

// Retry calls fn up to attempts times, sleeping delay between tries.
// It stops early when ctx is done or the error is not worth retrying.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(delay):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, ErrNoProvider) || errors.Is(err, context.Canceled) {
			return err
		}
	}
	return err
}

// Structured sends req and decodes the answer into T, then runs struct
// validation tags and the optional check.
func Structured[T any](ctx context.Context, svc TextService, req Request, check func(T) error) (T, error) {
	var zero T
	resp, err := svc.Complete(ctx, req)
	if err != nil {
		return zero, err
	}
	out, err := utils.ExtractAndParseJSON[T](resp.Content)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", req.Operation, err)
	}
	if err := validate.Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) { // non-struct T has nothing to validate
			return zero, fmt.Errorf("%s: schema: %w", req.Operation, err)
		}
	}
	if check != nil {
		if err := check(out); err != nil {
			return zero, fmt.Errorf("%s: %w", req.Operation, err)
		}
	}
	return out, nil
}

// IsTransient reports whether err looks like a rate limit, timeout or
// network failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "429", "timeout", "connection", "temporarily", "503"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
