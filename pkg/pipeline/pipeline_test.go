package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/abworrall/scalecam/pkg/camera"
	"github.com/abworrall/scalecam/pkg/config"
	"github.com/abworrall/scalecam/pkg/ecolor"
	"github.com/abworrall/scalecam/pkg/emath"
	"github.com/abworrall/scalecam/pkg/frame"
	"github.com/abworrall/scalecam/pkg/wb"
)

// fakeSource hands out a fixed list of frames, then io.EOF (or, if
// endless, keeps repeating the last one). A nil entry in the list is
// returned as a malformed frame; panicAt makes Read panic on that call.
type fakeSource struct {
	info    camera.DeviceInfo
	frames  []*frame.Frame
	endless bool
	panicAt int

	mu     sync.Mutex
	reads  int
	closed bool
}

func (s *fakeSource) Read() (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.panicAt > 0 && s.reads == s.panicAt {
		panic("driver fell over")
	}
	i := s.reads - 1
	if i >= len(s.frames) {
		if !s.endless || len(s.frames) == 0 {
			return nil, io.EOF
		}
		i = len(s.frames) - 1
	}
	if s.frames[i] == nil {
		return &frame.Frame{Width: 2, Height: 2}, nil
	}
	f := s.frames[i].Clone()
	f.Seq = uint64(s.reads)
	return f, nil
}

func (s *fakeSource) Info() camera.DeviceInfo { return s.info }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func uniformFrames(n int, b, g, r uint8) []*frame.Frame {
	ret := make([]*frame.Frame, n)
	for i := range ret {
		ret[i] = frame.NewUniform(32, 24, b, g, r)
	}
	return ret
}

func macbookInfo() camera.DeviceInfo {
	return camera.DeviceInfo{Index: 0, Resolution: camera.Resolution{Width: 1280, Height: 720}}
}

func arducamInfo() camera.DeviceInfo {
	return camera.DeviceInfo{
		Index:      1,
		Resolution: camera.Resolution{Width: 1920, Height: 1080},
		Identity:   &camera.Identity{VendorID: "0bda", ProductID: "5830"},
	}
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	c := config.NewConfig()
	if err := c.Finalize(); err != nil {
		t.Fatal(err)
	}
	return New(c)
}

// collect records every result the pipeline produces.
type collector struct {
	mu      sync.Mutex
	results []wb.Result
}

func (c *collector) sink(r wb.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) all() []wb.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wb.Result(nil), c.results...)
}

type memStore struct {
	saved *wb.Override
}

func (m *memStore) SavedOverride() *wb.Override { return m.saved }
func (m *memStore) StoreOverride(o *wb.Override) error {
	m.saved = o
	return nil
}

func TestRun_ProcessesUntilEOF(t *testing.T) {
	p := newTestPipeline(t)
	src := &fakeSource{info: macbookInfo(), frames: uniformFrames(5, 150, 150, 100)}
	col := &collector{}
	p.Sink = col.sink

	if err := p.Run(context.Background(), src); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if !src.isClosed() {
		t.Error("source not closed")
	}

	results := col.all()
	if len(results) != 5 || p.Out.Published() != 5 {
		t.Fatalf("got %d results, %d published", len(results), p.Out.Published())
	}
	for _, r := range results {
		if r.Class != ecolor.MacBookBuiltin || r.Source != wb.SourceAuto {
			t.Errorf("result %s", r.Diagnostics)
		}
	}
	latest, ok := p.Out.Latest()
	if !ok || latest.Seq != 5 {
		t.Errorf("latest = %v, %v", latest.Diagnostics, ok)
	}
}

func TestRun_SurvivesBadFrames(t *testing.T) {
	p := newTestPipeline(t)
	frames := uniformFrames(6, 120, 120, 120)
	frames[2] = nil // malformed
	src := &fakeSource{info: macbookInfo(), frames: frames, panicAt: 5}
	col := &collector{}
	p.Sink = col.sink

	if err := p.Run(context.Background(), src); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	results := col.all()
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5 (one passed through, one lost to a panic)", len(results))
	}
	if results[2].Corrected != results[1].Corrected {
		t.Error("malformed frame did not pass through the previous corrected frame")
	}
	if p.Out.Published() != 4 {
		t.Errorf("published = %d, want 4", p.Out.Published())
	}
	if p.Failures() != 2 {
		t.Errorf("failures = %d", p.Failures())
	}
}

func TestRun_MalformedFirstFrameNotForwarded(t *testing.T) {
	p := newTestPipeline(t)
	frames := uniformFrames(3, 120, 120, 120)
	frames[0] = nil
	src := &fakeSource{info: macbookInfo(), frames: frames}
	col := &collector{}
	p.Sink = col.sink

	if err := p.Run(context.Background(), src); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	results := col.all()
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, r := range results {
		if r.Corrected == nil {
			t.Errorf("result %d has no corrected frame", i)
		}
	}
	if p.Failures() != 1 {
		t.Errorf("failures = %d, want 1", p.Failures())
	}
}

func TestRun_CommandsAppliedBeforeFrames(t *testing.T) {
	p := newTestPipeline(t)
	src := &fakeSource{info: macbookInfo(), frames: uniformFrames(3, 150, 150, 100)}
	col := &collector{}
	p.Sink = col.sink

	override := emath.Vec3{1.1, 1.0, 0.9}
	if err := p.Send(SetOverride{Gains: override}); err != nil {
		t.Fatal(err)
	}
	if err := p.Send(ToggleDebug{}); err != nil {
		t.Fatal(err)
	}
	if err := p.Run(context.Background(), src); err != nil {
		t.Fatal(err)
	}

	for _, r := range col.all() {
		if r.Source != wb.SourceOverride || r.Gains != override {
			t.Errorf("result %s, want the override", r.Diagnostics)
		}
		if r.Preview == r.Corrected {
			t.Error("debug was toggled on, preview should carry the overlay")
		}
	}
}

func TestSend_QueueFull(t *testing.T) {
	p := newTestPipeline(t)
	for i := 0; i < DefaultCommandQueueSize; i++ {
		if err := p.Send(ClearOverride{}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := p.Send(ClearOverride{}); !errors.Is(err, ErrCommandQueueFull) {
		t.Errorf("err = %v, want ErrCommandQueueFull", err)
	}
}

func TestRun_SwitchSourceAndRestoreOverride(t *testing.T) {
	p := newTestPipeline(t)
	p.RestoreOverride = true
	store := &memStore{}
	p.Store = store

	second := &fakeSource{info: arducamInfo(), frames: uniformFrames(3, 150, 150, 100)}
	p.Open = func(index int) (Source, error) {
		if index != 1 {
			return nil, errors.New("no such device")
		}
		return second, nil
	}

	first := &fakeSource{info: macbookInfo(), frames: uniformFrames(10, 150, 150, 100)}
	col := &collector{}
	p.Sink = func(r wb.Result) {
		col.sink(r)
		if len(col.all()) == 2 {
			p.Send(SetPreset{Name: ecolor.PresetExtreme})
			p.Send(SaveOverride{})
			p.Send(SwitchSource{Index: 7}) // fails, and is ignored
			p.Send(SwitchSource{Index: 1})
		}
	}

	if err := p.Run(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if !first.isClosed() || !second.isClosed() {
		t.Error("sources not closed")
	}
	if store.saved == nil || store.saved.Preset != ecolor.PresetExtreme {
		t.Fatalf("saved override = %v", store.saved)
	}

	results := col.all()
	if len(results) != 5 {
		t.Fatalf("got %d results, want 2 from the first source and 3 from the second", len(results))
	}
	for _, r := range results[:2] {
		if r.Class != ecolor.MacBookBuiltin || r.Source != wb.SourceAuto {
			t.Errorf("first source result %s", r.Diagnostics)
		}
	}
	want, _ := ecolor.PresetGains(ecolor.DefaultColorModels()[ecolor.ArducamIMX219], ecolor.PresetExtreme)
	for _, r := range results[2:] {
		if r.Class != ecolor.ArducamIMX219 || r.Source != wb.SourceOverride || r.Gains != want {
			t.Errorf("second source result %s, want restored extreme preset %s", r.Diagnostics, want)
		}
	}
}

func TestRun_SwitchSourceWithoutRestore(t *testing.T) {
	p := newTestPipeline(t)
	p.Store = &memStore{saved: &wb.Override{Preset: ecolor.PresetMild}}
	second := &fakeSource{info: arducamInfo(), frames: uniformFrames(2, 150, 150, 100)}
	p.Open = func(int) (Source, error) { return second, nil }

	first := &fakeSource{info: macbookInfo(), frames: uniformFrames(10, 150, 150, 100)}
	col := &collector{}
	p.Sink = func(r wb.Result) {
		col.sink(r)
		if len(col.all()) == 1 {
			p.Send(SetOverride{Gains: emath.Vec3{2, 2, 2}})
			p.Send(SwitchSource{Index: 1})
		}
	}
	if err := p.Run(context.Background(), first); err != nil {
		t.Fatal(err)
	}

	for _, r := range col.all()[1:] {
		if r.Source != wb.SourceAuto {
			t.Errorf("override leaked across the device switch: %s", r.Diagnostics)
		}
	}
}

func TestRun_ContextCancel(t *testing.T) {
	p := newTestPipeline(t)
	src := &fakeSource{info: macbookInfo(), frames: uniformFrames(1, 120, 120, 120), endless: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx, src) }()

	// Read from the slot the way a UI would, until some frames arrive
	var last uint64
	deadline := time.Now().Add(5 * time.Second)
	for last < 3 && time.Now().Before(deadline) {
		if _, seq, ok := p.Out.ReadIfNew(last); ok {
			last = seq
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !src.isClosed() {
		t.Error("source not closed")
	}
}
