// Package pipeline runs the color correction as a single processing
// task: it pulls frames from a source, applies queued UI commands,
// corrects each frame, and publishes the results into a Slot for display.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/abworrall/scalecam/pkg/camera"
	"github.com/abworrall/scalecam/pkg/config"
	"github.com/abworrall/scalecam/pkg/frame"
	"github.com/abworrall/scalecam/pkg/wb"
)

var ErrCommandQueueFull = errors.New("command queue full")

const (
	DefaultCommandQueueSize = 16
	ReadRetryDelay          = 50 * time.Millisecond
)

// Source is where frames come from: a camera, a video file, a test
// pattern. Read blocks until the next frame; io.EOF means there will be
// no more.
type Source interface {
	Read() (*frame.Frame, error)
	Info() camera.DeviceInfo
	Close() error
}

// Opener opens capture device N, for device switching.
type Opener func(index int) (Source, error)

// OverrideStore persists the manual override across runs.
type OverrideStore interface {
	SavedOverride() *wb.Override
	StoreOverride(*wb.Override) error
}

type Pipeline struct {
	config.Config

	Classifier camera.Classifier
	Processor  *wb.Processor
	Store      OverrideStore // May be nil
	Open       Opener        // May be nil; device switching then fails
	Out        *Slot

	// Sink, if set, is called from the processing task with every result,
	// including the pass-through of the last good frame for a malformed one.
	Sink func(wb.Result)

	commands chan Command
	session  *wb.Session
	src      Source
	frames   int
	failures int
}

// New builds a pipeline from a config, which should already have been
// through Finalize (as Load does).
func New(c config.Config) *Pipeline {
	if c.ColorModels == nil {
		if err := c.Finalize(); err != nil {
			log.Printf("pipeline config: %v\n", err)
		}
	}
	p := &Pipeline{
		Config:     c,
		Classifier: camera.NewClassifier(c.ClassMap),
		Processor:  wb.NewProcessor(c.Thresholds),
		Out:        NewSlot(),
		commands:   make(chan Command, DefaultCommandQueueSize),
	}
	p.Processor.Verbosity = c.Verbosity
	return p
}

// Send queues a command for the processing task. It never blocks: if the
// queue is full the command is dropped and ErrCommandQueueFull returned.
func (p *Pipeline) Send(cmd Command) error {
	select {
	case p.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("%v: %w", cmd, ErrCommandQueueFull)
	}
}

// Run is the processing task. It owns the session and the source, and
// returns when the context is cancelled (ctx.Err()) or the source runs
// dry (nil). Per-frame problems are logged and skipped.
func (p *Pipeline) Run(ctx context.Context, src Source) error {
	p.startSession(src)
	defer p.closeSource()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p.applyCommands()

		if err := p.step(); errors.Is(err, io.EOF) {
			if p.Verbosity > 0 {
				log.Printf("source exhausted after %d frames; %s\n", p.frames, p.Processor.Stats)
			}
			return nil
		} else if err != nil {
			p.failures++
			if p.Verbosity > 0 {
				log.Printf("frame: %v\n", err)
			}
			if errors.Is(err, errRead) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(ReadRetryDelay):
				}
			}
		}
	}
}

var errRead = errors.New("read")

// step reads, processes and publishes one frame. A panic anywhere in
// here loses that frame, not the pipeline.
func (p *Pipeline) step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()

	f, err := p.src.Read()
	if errors.Is(err, io.EOF) {
		return io.EOF
	} else if err != nil {
		return fmt.Errorf("%w: %v", errRead, err)
	}

	res, err := p.Processor.Process(p.session, f)
	if err != nil {
		// The slot already holds the last good result; the sink gets the
		// pass-through so it sees one output per input frame.
		if p.Sink != nil && res.Corrected != nil {
			p.Sink(res)
		}
		return err
	}

	p.frames++
	p.Out.Put(res)
	if p.Sink != nil {
		p.Sink(res)
	}
	if p.Verbosity > 0 && p.LogEvery > 0 && p.frames%p.LogEvery == 0 {
		log.Printf("%s; slot dropped %d, %.1f fps\n", p.Processor.Stats, p.Out.Dropped(), p.Out.Rate())
	}
	return nil
}

// applyCommands drains whatever is queued, without waiting for more.
func (p *Pipeline) applyCommands() {
	for {
		select {
		case cmd := <-p.commands:
			if err := cmd.apply(p); err != nil {
				log.Printf("command %v: %v\n", cmd, err)
			} else if p.Verbosity > 0 {
				log.Printf("command %v applied: %s\n", cmd, p.session)
			}
		default:
			return
		}
	}
}

// startSession classifies the source and builds a fresh session for it.
// Only the debug toggle carries over from any previous session.
func (p *Pipeline) startSession(src Source) {
	info := src.Info()
	class := p.Classifier.Classify(info.Resolution, info.Identity)
	model := p.ColorModels.Lookup(class)

	debug := p.Debug
	if p.session != nil {
		debug = p.session.Debug
	}

	p.src = src
	p.session = wb.NewSession(class, model, info.Resolution, wb.SessionOptions{
		HistorySize: p.HistorySize,
		Debug:       debug,
	})

	if p.RestoreOverride && p.Store != nil {
		if o := p.Store.SavedOverride(); o != nil {
			if err := p.session.ApplyOverride(*o); err != nil {
				log.Printf("restore %s: %v\n", o, err)
			}
		}
	}

	if p.Verbosity > 0 {
		log.Printf("new session for %s: %s\n  %s\n", info, p.session, model)
	}
}

// Failures counts frames lost to read errors, malformed frames and panics.
func (p *Pipeline) Failures() int { return p.failures }

func (p *Pipeline) closeSource() {
	if p.src == nil {
		return
	}
	if err := p.src.Close(); err != nil {
		log.Printf("close %s: %v\n", p.src.Info(), err)
	}
	p.src = nil
}
