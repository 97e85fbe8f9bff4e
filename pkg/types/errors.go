package types

import (
	"errors"
	"fmt"
)

// Error categories. Every operation failure wraps exactly one of these, so
// callers can branch with errors.Is without knowing the specific cause.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Lookup errors.
var (
	ErrSiteNotFound    = fmt.Errorf("site %w", ErrNotFound)
	ErrRowNotFound     = fmt.Errorf("row %w", ErrNotFound)
	ErrColumnNotFound  = fmt.Errorf("column %w", ErrNotFound)
	ErrElementNotFound = fmt.Errorf("element %w", ErrNotFound)
)

// Argument errors.
var (
	ErrInvalidWidth       = fmt.Errorf("%w: column width must be between %d and %d", ErrInvalidArgument, MinColumnWidth, MaxColumnWidth)
	ErrUnknownElementType = fmt.Errorf("%w: unknown element type", ErrInvalidArgument)
	ErrInvalidProps       = fmt.Errorf("%w: invalid element properties", ErrInvalidArgument)
	ErrInvalidSnapshot    = fmt.Errorf("%w: invalid snapshot", ErrInvalidArgument)
	ErrInvalidID          = fmt.Errorf("%w: invalid ID", ErrInvalidArgument)
	ErrInvalidTenant      = fmt.Errorf("%w: tenant must not be empty", ErrInvalidArgument)
	ErrSiteExists         = fmt.Errorf("%w: site already exists", ErrInvalidArgument)
)

// Backend lifecycle errors.
var (
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)
