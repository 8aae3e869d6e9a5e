// Package filemap maps byte ranges of files into memory.
//
// A [FileMapper] hands out mapped byte slices for region-aligned positions.
// Four implementations cover the usual layouts:
//
//   - [Fixed] maps a file of known size once and hands out sub-slices.
//   - [Expandable] grows one file as regions past its end are requested.
//   - [ReadOnlyMapper] maps an existing file and refuses regions past its end.
//   - [Rolled] spreads positions over a sequence of size-capped files.
//
// Mappers never panic on OS failures. Map returns an error that matches one
// of the sentinel errors below; Unmap logs and swallows failures so a
// background goroutine calling it keeps running.
package filemap
