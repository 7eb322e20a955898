// Package kobo implements the client for the Kobo store's private API:
// device authentication, the web sign-in flow, library sync, and access
// to purchased book content including per-entry decryption keys.
//
// A Client owns its cookie jar and cached endpoint settings and is not
// safe for concurrent use. All network traffic flows through the
// injected Transport so tests can script the server side.
package kobo
