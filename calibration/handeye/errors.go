package handeye

import "github.com/pkg/errors"

var (
	// ErrInsufficientSamples is returned when there are fewer samples than the algorithm needs.
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrDegenerateGeometry is returned when the sample rotations are too close to sharing one axis.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
)

// NewInsufficientSamplesError returns an error wrapping ErrInsufficientSamples.
func NewInsufficientSamplesError(method string, have, want int) error {
	return errors.Wrapf(ErrInsufficientSamples, "%s needs at least %d samples, got %d", method, want, have)
}

// NewDegenerateGeometryError returns an error wrapping ErrDegenerateGeometry.
func NewDegenerateGeometryError(cond, limit float64) error {
	return errors.Wrapf(ErrDegenerateGeometry,
		"rotation system condition number %.3g exceeds %.3g; vary the tool orientation more", cond, limit)
}
