// Package npz reads and writes NumPy .npz archives.
//
// An archive is a zip container holding one <key>.npy entry per array. Entries
// are written in the order of the source set with a fixed modification time,
// so encoding the same set twice yields identical bytes. Entries are stored
// uncompressed unless Options.Compress selects Deflate.
//
// Decode materializes every array. Open gives random access by key through
// the zip central directory and decodes only the entries asked for.
package npz
