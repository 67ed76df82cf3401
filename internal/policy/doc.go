// Package policy decides whether a request may reach its handler.
//
// Rules are evaluated top-down against the request method and path and the
// first match wins. Patterns use doublestar syntax: `*` matches within one
// path segment and `**` matches any depth. A request that matches no rule
// requires an authenticated, active principal.
package policy
