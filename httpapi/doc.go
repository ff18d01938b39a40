// Package httpapi exposes authcore.Engine over HTTP: the OAuth authorize and
// token endpoints, the login form that sets the session cookie, JSON token
// endpoints for first-party clients, and health and metrics routes.
//
// Handlers parse requests, call the engine and render its errors with
// authcore.HTTPStatus and authcore.OAuthErrorCode. They hold no state of
// their own.
package httpapi
