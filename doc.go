// Package trfs implements a read-optimized single-file archive.
//
// Many named blobs ("virtual files") are packed into one container. Each
// blob is compressed on its own, and a trie keyed by path characters maps a
// virtual path to the blob's location, so a lookup costs one step per path
// character and never scans a directory table.
//
// Virtual paths use a 29-symbol alphabet: the letters A to Z (matched
// case-insensitively), '.', '_' and the path separator ('/' or '\').
//
// # Container layout
//
// A container is a table section followed by a data section:
//
//   - Table: the trie in pre-order. Every child slot of a node is written in
//     symbol order. An empty slot is the byte '#'. A present node is its
//     symbol byte (0 for the root), then '@' when it holds no file, or '$'
//     followed by the offset, size and compressed size of its file as
//     little-endian int64 values.
//   - Data: the compressed payloads, concatenated in the same pre-order.
//     Offsets are relative to the start of the data section.
//
// Payloads are zstd or LZ4 frames; the reader detects the algorithm from
// the frame header.
//
// # Building
//
//	b, err := trfs.NewBuilder()
//	if err != nil {
//	    return err
//	}
//	if err := b.InsertFile(ctx, "assets/car.png", "images/car.png"); err != nil {
//	    return err
//	}
//	stats, err := b.Write("data.trfs")
//
// # Reading
//
//	archive, err := trfs.Load("data.trfs")
//	if err != nil {
//	    return err
//	}
//	defer archive.Close()
//	content, err := archive.Open("Images/Car.PNG")
//
// New loads from any ByteSource. Package http reads a container with range
// requests, and package cache can sit in front of it so the table and hot
// files are fetched once:
//
//	remote, err := http.NewSource(ctx, "https://cdn.example.com/data.trfs")
//	if err != nil {
//	    return err
//	}
//	src, err := cache.Wrap(remote, cache.NewMemory(64<<20))
//	if err != nil {
//	    return err
//	}
//	archive, err := trfs.New(src)
//
// An Archive is safe for concurrent use. A Builder is not.
package trfs
