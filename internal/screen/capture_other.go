//go:build !linux && !darwin

package screen

// New reports that live capture is unavailable; use --replay instead.
func New() (Grabber, error) {
	return nil, ErrUnsupported
}
