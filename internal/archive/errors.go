package archive

import "errors"

var (
	ErrInvalidArchive = errors.New("invalid zip archive")
	ErrUnsafePath     = errors.New("archive entry escapes destination")
	ErrTooManyEntries = errors.New("archive has too many entries")
	ErrTooLarge       = errors.New("archive expands beyond size limit")
)
