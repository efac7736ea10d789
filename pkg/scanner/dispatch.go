package scanner

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"cbird/pkg/media"
)

// Job is one unit of work handed to a Dispatcher worker: decode path,
// produce a Media record or an error. The scanner never interprets the
// file itself; that's the processor's job (§4.G) — Dispatcher only owns
// concurrency and queue accounting, mirroring the reference's separate
// image/video QThreadPools (original_source/src/scanner.cpp).
type Job struct {
	Candidate Candidate
	Type      media.Type
}

// Result is what a worker reports back for one Job. Artifact is whatever
// Process returned: normally a media.Media, but a caller needing the
// extra per-item descriptors an index backend depends on (pkg/engine,
// feeding the D2/D3/D4 backends from one decode pass) can hand in a
// Process that returns a richer struct instead -- the dispatcher itself
// only routes by Job.Type and never looks inside Artifact.
type Result struct {
	Job      Job
	Artifact any
	Err      error
}

// Process is supplied by the caller (normally pkg/processor) and decodes
// one candidate file into whatever artifact the caller needs; the
// dispatcher doesn't interpret it.
type Process func(ctx context.Context, path string, mediaType media.Type) (any, error)

// Dispatcher runs image jobs and video jobs on independently sized
// worker pools, matching the reference's rationale that video decode is
// itself internally threaded and so gets fewer concurrent jobs than
// images (IndexParams.decoderThreads <= indexThreads, scanner.cpp:59-75).
type Dispatcher struct {
	ImageWorkers int
	VideoWorkers int
	Process      Process
}

// NewDispatcher sizes worker counts off the host CPU count the way the
// reference defaults indexThreads/decoderThreads to QThread::idealThreadCount()
// when the caller leaves them at zero (scanner.cpp:59).
func NewDispatcher(process Process, imageWorkers, videoWorkers int) *Dispatcher {
	if imageWorkers <= 0 {
		imageWorkers = runtime.NumCPU()
	}
	if videoWorkers <= 0 {
		videoWorkers = imageWorkers
		if videoWorkers > runtime.NumCPU() {
			videoWorkers = runtime.NumCPU()
		}
	}
	if videoWorkers > imageWorkers {
		videoWorkers = imageWorkers
	}
	return &Dispatcher{ImageWorkers: imageWorkers, VideoWorkers: videoWorkers, Process: process}
}

// Run fans jobs out across the two pools and returns every Result once
// all jobs finish or ctx is canceled. Results are unordered. The two
// pools run as sibling errgroup members so a panic/cancellation in one
// doesn't leave the other's goroutines dangling uncounted.
func (d *Dispatcher) Run(ctx context.Context, jobs []Job) []Result {
	var imageJobs, videoJobs []Job
	for _, j := range jobs {
		if j.Type == media.TypeVideo {
			videoJobs = append(videoJobs, j)
		} else {
			imageJobs = append(imageJobs, j)
		}
	}

	results := make(chan Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.runPool(gctx, imageJobs, d.ImageWorkers, results)
		return nil
	})
	g.Go(func() error {
		d.runPool(gctx, videoJobs, d.VideoWorkers, results)
		return nil
	})

	go func() {
		g.Wait() //nolint:errcheck // runPool never returns an error
		close(results)
	}()

	out := make([]Result, 0, len(jobs))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// runPool drains jobs across workers concurrent goroutines, each
// reporting its Result on results. It returns once every job has been
// processed (or ctx was already canceled when picked up).
func (d *Dispatcher) runPool(ctx context.Context, jobs []Job, workers int, results chan<- Result) {
	if len(jobs) == 0 {
		return
	}
	if workers <= 0 {
		workers = 1
	}

	queue := make(chan Job, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for job := range queue {
				select {
				case <-ctx.Done():
					results <- Result{Job: job, Err: ctx.Err()}
					continue
				default:
				}
				artifact, err := d.Process(ctx, job.Candidate.Path, job.Type)
				results <- Result{Job: job, Artifact: artifact, Err: err}
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return an error
}
