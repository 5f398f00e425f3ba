package ingest

// IndexingAlreadyInProgressError is returned by UpdateAudioIndex when a
// previous run has not yet finished.
type IndexingAlreadyInProgressError struct{}

func (e *IndexingAlreadyInProgressError) Error() string {
	return "ingest: indexing already in progress"
}
