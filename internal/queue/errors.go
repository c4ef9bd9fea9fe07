package queue

import "errors"

var (
	ErrVisitNotFound  = errors.New("visit not found")
	ErrDuplicateVisit = errors.New("duplicate visit")
	ErrInvalidState   = errors.New("invalid visit state")
	ErrIntegrity      = errors.New("multiple visits in consultation")
)
