package domain

import "time"

// BatchRun summarizes one complete pass over all stations.
type BatchRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []BatchResult
}

// Counts returns how many stations finished and how many failed.
func (r BatchRun) Counts() (done, failed int) {
	for _, res := range r.Results {
		if res.Done {
			done++
		} else {
			failed++
		}
	}
	return done, failed
}
