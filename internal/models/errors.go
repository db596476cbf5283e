package models

import "fmt"

// ValidationError reports a missing or malformed request field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports an absent table, product, session or line
type NotFoundError struct {
	Entity string
	Key    interface{}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
}

// ConflictError reports a lost race that the caller may retry,
// such as two terminals opening a session against the same table
type ConflictError struct {
	Resource string
	Message  string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Message)
}

// UnauthorizedError reports a waitstaff code that the staff
// directory could not resolve
type UnauthorizedError struct {
	ActorID int
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("waitstaff %d is not an active staff member", e.ActorID)
}
