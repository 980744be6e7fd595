// Package dump writes memory images to disk as raw binary and Intel HEX.
//
// Files are replaced atomically: each is written to a temporary file in
// the destination directory and renamed into place.
package dump
