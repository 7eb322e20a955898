// Package session holds the credential state for one store account: the
// device identity, the token pair, and the user identity. Getters are
// guarded so that a field is only observable when the fields it depends
// on are present, which keeps a half-written session indistinguishable
// from an absent one.
package session
