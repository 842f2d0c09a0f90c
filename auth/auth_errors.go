package auth

import "errors"

var (
	InvalidCredentialsErr   = errors.New("invalid credentials")
	IdentityUnreachableErr  = errors.New("identity service unreachable")
	InvalidLoginResponseErr = errors.New("invalid login response")
)
