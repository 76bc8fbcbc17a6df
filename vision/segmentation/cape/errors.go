package cape

import "github.com/pkg/errors"

var (
	// ErrConfiguration is returned for invalid options or a grid without cells.
	ErrConfiguration = errors.New("invalid plane segmentation configuration")
	// ErrFitting is returned when a cell plane cannot be fit; the whole frame is unusable.
	ErrFitting = errors.New("plane fitting failed")
	// ErrInvariantViolation is returned when region growing reaches a cell outside the grid or
	// activates cells that were already consumed.
	ErrInvariantViolation = errors.New("plane segmentation invariant violated")
	// ErrCloudDimensions is returned when a cloud does not match the segmenter's grid.
	ErrCloudDimensions = errors.New("point cloud does not match the segmentation grid")
)

func newConfigurationError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

func newFittingError(cellID int, format string, args ...interface{}) error {
	return errors.Wrapf(ErrFitting, "cell %d: "+format, append([]interface{}{cellID}, args...)...)
}
