package flow

import "errors"

var (
	// ErrUnsupportedContent indicates a chapter cannot be flowed: unknown
	// media type or markup that is not valid UTF-8.
	ErrUnsupportedContent = errors.New("flow: unsupported content")

	// ErrInvalidLayout indicates a layout with non-positive dimensions or
	// metrics.
	ErrInvalidLayout = errors.New("flow: invalid layout")
)
