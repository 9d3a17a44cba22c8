// Package failure defines the sentinel markers every cinecat error carries
// when it crosses a package boundary.
//
// Wrap tags an error with a marker plus component and operation context so
// callers can classify it with errors.Is without parsing messages. IsAbsent
// groups the markers the fetcher treats as "resource not there yet".
package failure
