// Package auth owns the OAuth credential lifecycle for the Code Assist
// backend: the on-disk credential record, the token manager that refreshes
// the access token on demand, and the wire client for the Google identity
// provider (PKCE authorization-code flow, token refresh, userinfo lookup).
package auth
