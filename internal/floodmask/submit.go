package floodmask

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one extraction request: compute flood metrics for a single
// disaggregated event. Jobs are submitted at most once; failures land in
// the event's metrics_error column and are never retried.
type Job struct {
	Key      string // mon-yr-adm1-id
	Adm1Code int
	Year     int
}

// TaskQueue is the remote batch-processing platform the extractor runs on.
// Depth reports the number of active (queued or running) tasks.
type TaskQueue interface {
	Depth(ctx context.Context) (int, error)
	Submit(ctx context.Context, job Job) error
}

// Submitter feeds extraction jobs to the task queue through a small worker
// pool, self throttling against the queue's fixed capacity: when the
// active-task count reaches the threshold, submission sleeps for a fixed
// backoff and rechecks. This admission check is the pipeline's only
// blocking operation.
type Submitter struct {
	queue      TaskQueue
	threshold  int
	backoff    time.Duration
	numWorkers int

	jobs chan Job
	wg   sync.WaitGroup
}

func NewSubmitter(queue TaskQueue, threshold int, backoff time.Duration, workers, bufferSize int) *Submitter {
	return &Submitter{
		queue:      queue,
		threshold:  threshold,
		backoff:    backoff,
		numWorkers: workers,
		jobs:       make(chan Job, bufferSize),
	}
}

func (s *Submitter) Start(ctx context.Context) {
	for i := 1; i <= s.numWorkers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
}

func (s *Submitter) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			if err := s.submit(ctx, job); err != nil {
				slog.Error("job submission failed", "key", job.Key, "error", err)
			}
		}
	}
}

func (s *Submitter) submit(ctx context.Context, job Job) error {
	if err := s.waitForCapacity(ctx); err != nil {
		return err
	}
	if err := s.queue.Submit(ctx, job); err != nil {
		return err
	}
	slog.Info("submitted extraction job", "key", job.Key)
	return nil
}

// waitForCapacity polls the queue depth and sleeps while it sits at or
// above the threshold. A depth-poll error is logged and treated as free
// capacity rather than wedging the batch.
func (s *Submitter) waitForCapacity(ctx context.Context) error {
	for {
		depth, err := s.queue.Depth(ctx)
		if err != nil {
			slog.Warn("could not read task queue depth", "error", err)
			return ctx.Err()
		}
		if depth < s.threshold {
			return nil
		}
		slog.Info("task queue near limit, backing off", "depth", depth, "threshold", s.threshold, "backoff", s.backoff.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff):
		}
	}
}

// Enqueue hands a job to the pool. Blocks when the buffer is full.
func (s *Submitter) Enqueue(job Job) {
	s.jobs <- job
}

// Stop closes the intake and waits for in-flight submissions.
func (s *Submitter) Stop() {
	close(s.jobs)
	s.wg.Wait()
}
