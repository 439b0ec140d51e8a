package physion

import (
	"fmt"
)

// ArchiveOpenError is returned when an archive is missing, unreadable, or
// does not have the layout of a Physion recording.
type ArchiveOpenError struct {
	Path string
	Err  error
}

func (e *ArchiveOpenError) Error() string {
	return fmt.Sprintf("cannot open archive %q: %v", e.Path, e.Err)
}

func (e *ArchiveOpenError) Unwrap() error { return e.Err }

// ImageDecodeError is returned when an image pass cannot be decoded.
type ImageDecodeError struct {
	Pass string
	Err  error
}

func (e *ImageDecodeError) Error() string {
	if e.Pass == "" {
		return fmt.Sprintf("cannot decode image: %v", e.Err)
	}
	return fmt.Sprintf("cannot decode image pass %s: %v", e.Pass, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// UnsupportedDepthModeError is returned for a depth pass name the decoder does not know.
type UnsupportedDepthModeError struct {
	Mode DepthMode
}

func (e *UnsupportedDepthModeError) Error() string {
	return fmt.Sprintf("invalid depth pass: %q", string(e.Mode))
}

// GeometryError is returned when a calibration matrix cannot be inverted.
type GeometryError struct {
	Matrix string
	Err    error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s matrix is not invertible: %v", e.Matrix, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// NoObjectPointsError is returned when no tracked object is visible in a frame.
type NoObjectPointsError struct {
	Objects int
}

func (e *NoObjectPointsError) Error() string {
	return fmt.Sprintf("none of the %d tracked objects is visible in the frame", e.Objects)
}

// FrameError attaches the archive and frame a failure happened in.
type FrameError struct {
	Path  string
	Frame string
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s frame %s: %v", e.Path, e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

func frameError(path, frame string, err error) error {
	if err == nil {
		return nil
	}
	return &FrameError{Path: path, Frame: frame, Err: err}
}
