// Package padm is the client for the PADM (PowerAlert Device Manager) REST
// API. It owns the OAuth2 password-grant token lifecycle, performs
// authenticated variable retrieval, and decodes the API's variable list into
// typed readings keyed by the built-in variable catalog.
package padm
