package trfstype

// FileEntry locates one stored blob inside the data section.
type FileEntry struct {
	// Offset is the byte offset of the compressed payload, relative to the
	// start of the data section.
	Offset uint64

	// Size is the uncompressed size in bytes.
	Size uint64

	// CompressedSize is the number of payload bytes in the data section.
	CompressedSize uint64
}
