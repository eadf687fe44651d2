package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: resource conflict")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
)
