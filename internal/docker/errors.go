package docker

import (
	"errors"
	"fmt"

	"github.com/docker/docker/client"
)

// ErrRuntimeUnavailable indicates the container daemon cannot be reached.
// Commands surface it to the caller; the log stream manager retries it
// internally up to a bounded attempt count.
var ErrRuntimeUnavailable = errors.New("container runtime unavailable")

// ImagePullError aborts container creation; it is never swallowed.
type ImagePullError struct {
	Image string
	Err   error
}

func (e *ImagePullError) Error() string {
	return fmt.Sprintf("failed to pull image %s: %v", e.Image, e.Err)
}

func (e *ImagePullError) Unwrap() error { return e.Err }

// IsNotFound reports whether an error means the container (or image) no
// longer exists in the runtime. Containers referenced by persisted state may
// have been removed out-of-band, so most call sites treat this as benign.
func IsNotFound(err error) bool {
	return client.IsErrNotFound(err)
}

// wrapRuntimeErr maps daemon connection failures onto ErrRuntimeUnavailable
// so callers can distinguish "daemon down" from an operation failure.
func wrapRuntimeErr(op string, err error) error {
	if client.IsErrConnectionFailed(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrRuntimeUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
