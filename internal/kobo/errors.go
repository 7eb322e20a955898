package kobo

import "errors"

var (
	// ErrNotLoggedIn is returned when an operation needs a fully
	// established user session and none is present.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrLoginFlow is returned when the web sign-in flow does not yield
	// the expected form fields, redirect script, or user parameters.
	ErrLoginFlow = errors.New("invalid login flow")

	// ErrAuthExhausted is returned when repeated attempts to build a
	// usable authorization header keep failing, which points at a
	// persistently corrupt session.
	ErrAuthExhausted = errors.New("authorization did not converge")

	// ErrTokenType is returned when an auth endpoint answers with a
	// token type other than Bearer.
	ErrTokenType = errors.New("unexpected token type")
)
