// Package mediatype implements the content negotiation used by the store
// client: strict Content-Type parsing, charset resolution, and the body
// codecs that move typed values in and out of HTTP messages.
package mediatype
