package queue

// legalTransitions enumerates every allowed status change. Transitions are
// monotonic along the pipeline with three exceptions: failed items may resume
// (manual retry), uploading items may fall back to awaiting_upload (upload
// retry after backoff), and any non-terminal item may be cancelled.
var legalTransitions = map[Status][]Status{
	StatusPending:        {StatusPlanning, StatusProcessing, StatusAwaitingUpload, StatusCancelled},
	StatusPlanning:       {StatusProcessing, StatusAwaitingUpload, StatusFailed, StatusCancelled},
	StatusProcessing:     {StatusProcessing, StatusAwaitingUpload, StatusFailed, StatusCancelled},
	StatusAwaitingUpload: {StatusUploading, StatusCancelled},
	StatusUploading:      {StatusCompleted, StatusAwaitingUpload, StatusFailed, StatusCancelled},
	StatusFailed:         {StatusPending, StatusAwaitingUpload},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to Status) bool {
	if from == to {
		return from == StatusProcessing
	}
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
