package utils

import (
	"github.com/pkg/errors"
)

// NewMissingAttributesError is used when required attributes are absent from a configuration.
func NewMissingAttributesError(names ...string) error {
	return errors.Errorf("missing required attributes %q", names)
}
