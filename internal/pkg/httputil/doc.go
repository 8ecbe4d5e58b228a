// Package httputil holds the JSON response helpers shared by the API
// handlers: one writer for bodies and one envelope for errors.
package httputil
