package spaced_repetition

import "errors"

var (
	ErrInvalidGrade = errors.New("spaced_repetition: grade must be within [0, 5]")
	ErrInvalidState = errors.New("spaced_repetition: malformed review state")
)
