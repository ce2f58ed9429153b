// Package errs defines the error shapes the API returns.
//
// Handlers and services return *HTTPError when they know what went wrong;
// everything else is turned into one by the global error handler.
package errs
