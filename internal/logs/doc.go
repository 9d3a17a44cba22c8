// Package logs reads the cinecat JSON log file for the `cinecat logs`
// command.
//
// Last returns the trailing lines that pass a Filter using a bounded ring
// buffer; Follow polls from an offset and hands new matching lines to a
// callback until its context ends.
package logs
