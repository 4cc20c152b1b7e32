// Package mediatypes classifies dataset files by extension and maps them to
// MIME types. It has no dependencies so every package can import it.
package mediatypes
