// Package oauth manages the SmartThings OAuth credential lifecycle:
// persisting tokens to the user configuration directory, refreshing them
// ahead of expiry through the refresh-token grant, and driving the
// interactive authorization-code flow on first run.
//
// SECURITY: this package handles bearer credentials. Token files are written
// with 0600 permissions into a 0700 directory, writes are atomic
// (write-temp-then-rename), and token values are never logged.
package oauth
