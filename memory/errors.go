package memory

import "errors"

var (
	ErrArchUnsupported = errors.New("architecture unsupported")
	ErrArchMismatch    = errors.New("architecture mismatch")
	ErrAddressInvalid  = errors.New("address invalid")
	ErrSizeInvalid     = errors.New("size invalid")
)
