package cron

import (
	"context"
	"fmt"
)

// Job is one scheduled task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs in run order. Names are unique.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: make(map[string]struct{})}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil cron job")
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("cron job %q registered twice", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
