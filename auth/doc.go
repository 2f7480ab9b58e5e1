// Package auth implements the standard auth surface: registration, login,
// token refresh and logout. Access tokens are HS256 JWTs; refresh tokens are
// opaque strings persisted in the relational store. Passwords are bcrypt
// digests with embedded salt.
package auth
