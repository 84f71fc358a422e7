package workers

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/camden-git/photowall/metrics"
	"github.com/camden-git/photowall/models"
)

// Captioner produces a caption for a JPEG frame.
type Captioner interface {
	Caption(ctx context.Context, jpeg []byte) (string, error)
}

// Settler applies the settled caption to the wall.
type Settler interface {
	Update(ctx context.Context, id string, patch models.PhotoPatch) (bool, error)
}

// CaptionRecorder is told when a capture's caption settles. Optional.
type CaptionRecorder interface {
	RecordCaption(photoID string, fallback bool, settledAt time.Time) error
}

type CaptionJob struct {
	PhotoID  string
	Frame    []byte
	QueuedAt time.Time
}

// CaptionProcessor runs caption requests in the background. Every queued job
// settles exactly once, with the model's caption or the fallback.
type CaptionProcessor struct {
	JobQueue chan CaptionJob
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	captioner Captioner
	settler   Settler
	recorder  CaptionRecorder
	timeout   time.Duration

	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopped  bool
}

type CaptionOptions struct {
	QueueSize  int
	NumWorkers int
	Timeout    time.Duration
	Recorder   CaptionRecorder
}

func NewCaptionProcessor(captioner Captioner, settler Settler, opts CaptionOptions) *CaptionProcessor {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	proc := &CaptionProcessor{
		JobQueue:  make(chan CaptionJob, opts.QueueSize),
		StopChan:  make(chan struct{}),
		Pending:   make(map[string]bool),
		captioner: captioner,
		settler:   settler,
		recorder:  opts.Recorder,
		timeout:   opts.Timeout,
		ctx:       ctx,
		cancel:    cancel,
	}
	proc.Wg.Add(opts.NumWorkers)
	for i := 0; i < opts.NumWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d caption worker(s) with queue size %d", opts.NumWorkers, opts.QueueSize)
	return proc
}

func (cp *CaptionProcessor) worker(id int) {
	defer cp.Wg.Done()

	log.Printf("Caption worker %d started", id)
	for {
		select {
		case job := <-cp.JobQueue:
			cp.process(job)
		case <-cp.StopChan:
			log.Printf("Caption worker %d stopping: Stop signal received", id)
			return
		}
	}
}

func (cp *CaptionProcessor) process(job CaptionJob) {
	ctx, cancel := context.WithTimeout(cp.ctx, cp.timeout)
	text, err := cp.captioner.Caption(ctx, job.Frame)
	cancel()
	if err != nil {
		log.Printf("Caption worker: caption failed for %s, using fallback: %v", job.PhotoID, err)
	}
	cp.settle(job, text, err != nil)
}

// settle writes the caption and clears the pending flag. The photo may have
// been deleted in the meantime; that is not an error.
func (cp *CaptionProcessor) settle(job CaptionJob, text string, failed bool) {
	defer cp.inflight.Done()
	defer func() {
		cp.Mutex.Lock()
		delete(cp.Pending, job.PhotoID)
		cp.Mutex.Unlock()
	}()

	caption := strings.ToLower(strings.TrimSpace(text))
	fallback := failed || caption == ""
	if fallback {
		caption = models.FallbackCaption
	}
	pending := false

	ok, err := cp.settler.Update(context.Background(), job.PhotoID, models.PhotoPatch{Caption: &caption, CaptionPending: &pending})
	if err != nil {
		log.Printf("Caption worker: ERROR persisting caption for %s: %v", job.PhotoID, err)
	}
	if !ok {
		log.Printf("Caption worker: %s was removed before its caption settled", job.PhotoID)
		return
	}

	settledAt := time.Now()
	metrics.RecordCaption(fallback, settledAt.Sub(job.QueuedAt))
	if cp.recorder != nil {
		if err := cp.recorder.RecordCaption(job.PhotoID, fallback, settledAt); err != nil {
			log.Printf("Caption worker: ERROR recording caption for %s: %v", job.PhotoID, err)
		}
	}
	log.Printf("Caption worker: Settled caption for %s (fallback=%t)", job.PhotoID, fallback)
}

// QueueJob queues a caption request unless one is already pending for the
// photo. When the queue is full or the processor has stopped, the photo gets
// the fallback caption immediately.
func (cp *CaptionProcessor) QueueJob(job CaptionJob) bool {
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now()
	}

	cp.Mutex.Lock()
	if cp.Pending[job.PhotoID] {
		cp.Mutex.Unlock()
		return false
	}
	cp.Pending[job.PhotoID] = true
	cp.inflight.Add(1)

	queued := false
	if !cp.stopped {
		select {
		case cp.JobQueue <- job:
			queued = true
		default:
		}
	}
	stopped := cp.stopped
	cp.Mutex.Unlock()

	switch {
	case queued:
		log.Printf("Queued caption for: %s", job.PhotoID)
	case stopped:
		log.Printf("WARNING: Caption processor stopped. Settling %s with fallback", job.PhotoID)
		cp.settle(job, "", true)
	default:
		log.Printf("WARNING: Caption job queue full. Settling %s with fallback", job.PhotoID)
		cp.settle(job, "", true)
	}
	return queued
}

// Wait blocks until every job queued so far has settled.
func (cp *CaptionProcessor) Wait() {
	cp.inflight.Wait()
}

// Stop cancels in-flight requests, stops the workers and settles whatever was
// still queued with the fallback caption.
func (cp *CaptionProcessor) Stop() {
	cp.stopOnce.Do(func() {
		log.Println("Stopping caption workers...")
		cp.Mutex.Lock()
		cp.stopped = true
		cp.Mutex.Unlock()
		cp.cancel()
		close(cp.StopChan)
		cp.Wg.Wait()
		for {
			select {
			case job := <-cp.JobQueue:
				cp.settle(job, "", true)
			default:
				log.Println("All caption workers stopped")
				return
			}
		}
	})
}
