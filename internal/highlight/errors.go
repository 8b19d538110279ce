package highlight

import "errors"

var (
	ErrInvalidSettings  = errors.New("highlight: invalid settings")
	ErrDisabled         = errors.New("highlight: highlighting is disabled")
	ErrDomainNotAllowed = errors.New("highlight: domain not allowed")
)
