// Package pack builds the distributable archives of a build output tree.
//
// Every archive is produced for an artifact Kind which selects the files
// that go into it:
//
//   - Release: everything but debug symbols, import libraries and the
//     output of debug builds.
//   - SDK: everything.
//   - Symbols: the program databases of the release build only.
//
// Archives are written to a temporary file next to the destination and renamed
// over it once complete, so readers never observe a partial archive. Writers
// of the same destination are serialized through a lock file.
package pack
