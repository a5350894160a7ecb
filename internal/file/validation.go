package file

import (
	"fmt"

	"github.com/meigma/trfs/internal/sizing"
	"github.com/meigma/trfs/internal/trfstype"
)

// ValidateForRead checks that an entry is safe to read from a data section
// of the given size. It validates:
//   - File sizes are within maxFileSize limit (if limit > 0)
//   - Offset + compressed size doesn't overflow
//   - The payload lies within the data section (ErrCorruptTable otherwise)
func ValidateForRead(entry *trfstype.FileEntry, dataSize, maxFileSize uint64) error {
	if maxFileSize > 0 {
		if entry.CompressedSize > maxFileSize || entry.Size > maxFileSize {
			return trfstype.ErrAllocation
		}
	}

	end, ok := sizing.AddUint64(entry.Offset, entry.CompressedSize)
	if !ok {
		return trfstype.ErrSizeOverflow
	}
	if end > dataSize {
		return fmt.Errorf("%w: entry spans [%d, %d) beyond data section of %d bytes",
			trfstype.ErrCorruptTable, entry.Offset, end, dataSize)
	}
	return nil
}
