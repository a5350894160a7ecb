package trfstype

// ProgressEvent represents a progress update while building an archive.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the virtual path currently being processed, if applicable.
	Path string

	// BytesDone is the number of bytes completed in the current stage.
	BytesDone uint64

	// FilesDone is the number of files completed.
	FilesDone int

	// FilesTotal is the total number of files.
	// Zero indicates the total is unknown.
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for archive creation.
const (
	// StageEnumerating indicates a directory tree is being walked.
	StageEnumerating ProgressStage = iota

	// StageCompressing indicates files are being read and compressed.
	StageCompressing

	// StageWritingTable indicates the trie table is being written.
	StageWritingTable

	// StageWritingData indicates the data section is being written.
	StageWritingData
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageCompressing:
		return "compressing"
	case StageWritingTable:
		return "writing table"
	case StageWritingData:
		return "writing data"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
