// Package api defines the HTTP wire types, boundary validation and
// middleware for the service. Handlers live in the handlers subpackage; the
// router is assembled in cmd/arogya.
package api
