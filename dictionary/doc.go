// Package dictionary holds the lookup result type and the in-memory store
// the lookup backend serves from.
package dictionary
