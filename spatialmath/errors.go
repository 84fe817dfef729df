package spatialmath

import "github.com/pkg/errors"

// ErrInvalidRotation is returned when a rotation input is not a proper rotation within tolerance.
var ErrInvalidRotation = errors.New("invalid rotation")

// NewInvalidRotationError returns an error wrapping ErrInvalidRotation with the offending detail.
func NewInvalidRotationError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidRotation, format, args...)
}
