package jobs

import "context"

// Store persists job states so a restart can pick up unfinished work.
type Store interface {
	LoadJobs(ctx context.Context) ([]*ProcessingJob, error)
	UpsertJob(ctx context.Context, job *ProcessingJob) error
	DeleteJob(ctx context.Context, jobID string) error
}
