package event

import (
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/base62"
)

const IdPrefix = "e"

// NewId generates an event id with the given prefix.  It intentionally does
// not use the errors package, which would create a circular dependency.
func NewId(prefix string) (string, error) {
	const op = "event.NewId"
	if prefix == "" {
		return "", fmt.Errorf("%s: missing prefix: %w", op, ErrInvalidParameter)
	}
	publicId, err := base62.Random(10)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id %v: %w", op, err, ErrIo)
	}
	return fmt.Sprintf("%s_%s", prefix, publicId), nil
}
