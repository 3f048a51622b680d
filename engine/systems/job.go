package systems

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/shaderbind/engine/core"
)

/** @brief A unit of work run on one of the job system workers. */
type JobTask struct {
	Name string
	/** @brief Invoked when the job starts. Required. */
	OnStart func() error
	/** @brief Invoked when OnStart succeeds. Optional. */
	OnComplete func()
	/** @brief Invoked with the error of a failed OnStart. Optional. */
	OnFailure func(err error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu       sync.Mutex
	isClosed bool
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = errors.New("job system already shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				if err := job.OnStart(); err != nil {
					core.LogError("job %s failed: %s", job.Name, err)
					if job.OnFailure != nil {
						job.OnFailure(err)
					}
					continue
				}
				if job.OnComplete != nil {
					job.OnComplete()
				}
			}
		}()
	}
}

/**
 * @brief Shuts the job system down. Queued jobs are drained first.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.isClosed {
		js.mu.Unlock()
		return ErrJobSystemClosed
	}
	js.isClosed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.isClosed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

// RunAll runs the tasks on the workers and waits for all of them. The
// returned error joins the failures.
func (js *JobSystem) RunAll(tasks []JobTask) error {
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error

	for _, t := range tasks {
		t := t
		onComplete, onFailure := t.OnComplete, t.OnFailure
		t.OnComplete = func() {
			defer wg.Done()
			if onComplete != nil {
				onComplete()
			}
		}
		t.OnFailure = func(err error) {
			defer wg.Done()
			errMu.Lock()
			errs = append(errs, err)
			errMu.Unlock()
			if onFailure != nil {
				onFailure(err)
			}
		}
		wg.Add(1)
		if err := js.Submit(t); err != nil {
			wg.Done()
			errMu.Lock()
			errs = append(errs, err)
			errMu.Unlock()
			break
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}
