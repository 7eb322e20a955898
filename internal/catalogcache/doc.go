// Package catalogcache persists the synced library to a local SQLite
// database so repeated listings do not replay the full sync feed.
package catalogcache
