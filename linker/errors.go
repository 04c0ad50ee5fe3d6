package linker

import "errors"

var ErrModeInvalid = errors.New("relocation mode invalid")
