// Package capture acquires local media: periodic downscaled screen
// snapshots and a live microphone sample stream. Both are produced by
// external ffmpeg processes so the package works without cgo audio or
// display bindings.
package capture

import "image"

// FrameSource yields the current contents of a shared surface. A source
// that is still initializing may return an image with zero dimensions;
// callers are expected to retry shortly rather than treat that as fatal.
type FrameSource interface {
	// Frame returns the most recent full frame. The returned image is
	// owned by the caller.
	Frame() (image.Image, error)

	// Close releases the underlying device or process.
	Close() error
}
