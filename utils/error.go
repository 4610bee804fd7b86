package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrorUnauthorized   = errors.New("unauthorized")
	ErrorForbidden      = errors.New("forbidden")
)
