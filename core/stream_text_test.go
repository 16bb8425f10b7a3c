package core

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recorder collects lifecycle events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// finished returns the single finished event, failing the test if the
// recorded lifecycle is not exactly started then finished.
func (r *recorder) finished(t *testing.T) Event {
	t.Helper()
	events := r.all()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (started, finished)", len(events))
	}
	if events[0].Type != EventStarted {
		t.Fatalf("events[0].Type = %v, want started", events[0].Type)
	}
	if events[1].Type != EventFinished {
		t.Fatalf("events[1].Type = %v, want finished", events[1].Type)
	}
	if events[0].Metadata.CallID != events[1].Metadata.CallID {
		t.Errorf("call ids differ: %q vs %q", events[0].Metadata.CallID, events[1].Metadata.CallID)
	}
	if events[1].Result == nil {
		t.Fatal("finished event has no result")
	}
	return events[1]
}

type trackingStream struct {
	*SliceDeltaStream[string]
	closed atomic.Bool
}

func (s *trackingStream) Close() error {
	s.closed.Store(true)
	return s.SliceDeltaStream.Close()
}

type fakeStreamingModel struct {
	settings Settings
	calls    *atomic.Int32
	open     func(ctx context.Context, call int) (DeltaStream[string], error)
}

func newFakeStreamingModel(open func(ctx context.Context, call int) (DeltaStream[string], error)) *fakeStreamingModel {
	return &fakeStreamingModel{calls: new(atomic.Int32), open: open}
}

// replay returns a model that yields the same events on every call, and
// the stream handed out by the most recent call.
func replay(events ...DeltaEvent[string]) (*fakeStreamingModel, func() *trackingStream) {
	var mu sync.Mutex
	var last *trackingStream
	m := newFakeStreamingModel(func(context.Context, int) (DeltaStream[string], error) {
		mu.Lock()
		defer mu.Unlock()
		last = &trackingStream{SliceDeltaStream: NewSliceDeltaStream(events...)}
		return last, nil
	})
	return m, func() *trackingStream {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func (m *fakeStreamingModel) ModelInformation() ModelInformation {
	return ModelInformation{Provider: "fake", ModelName: "fake-1"}
}

func (m *fakeStreamingModel) Settings() Settings { return m.settings.Clone() }

func (m *fakeStreamingModel) WithSettings(s Settings) TextStreamingModel[string, string] {
	c := *m
	c.settings = m.settings.Merge(s)
	return &c
}

func (m *fakeStreamingModel) GenerateDeltaStreamResponse(ctx context.Context, _ string, _ CallOptions) (DeltaStream[string], error) {
	return m.open(ctx, int(m.calls.Add(1)))
}

func (m *fakeStreamingModel) ExtractTextDelta(d string) (string, bool) { return d, true }

func readAll(t *testing.T, s *TextStream) []string {
	t.Helper()
	var got []string
	for s.Next() {
		got = append(got, s.Text())
	}
	return got
}

func TestStreamTextSuccess(t *testing.T) {
	model, last := replay(DeltaOf("Hello"), DeltaOf(", "), DeltaOf("world"))
	rec := &recorder{}

	s, err := StreamText(context.Background(), model, "greet", WithObservers(rec))
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}

	got := readAll(t, s)
	want := []string{"Hello", ", ", "world"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fragments = %q, want %q", got, want)
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if s.Output() != "Hello, world" {
		t.Errorf("Output() = %q, want %q", s.Output(), "Hello, world")
	}

	fin := rec.finished(t)
	if fin.Result.Status != StatusSuccess {
		t.Errorf("status = %v, want success", fin.Result.Status)
	}
	if fin.Result.Output != "Hello, world" {
		t.Errorf("result output = %q, want %q", fin.Result.Output, "Hello, world")
	}
	if fin.Result.Response != "world" {
		t.Errorf("result response = %v, want last delta", fin.Result.Response)
	}
	if fin.Metadata.FunctionType != FunctionTextStreaming {
		t.Errorf("function type = %v, want %v", fin.Metadata.FunctionType, FunctionTextStreaming)
	}
	if fin.Metadata.Input != "greet" {
		t.Errorf("input = %v, want greet", fin.Metadata.Input)
	}
	if fin.FinishTimestamp.Before(fin.Metadata.StartTimestamp) {
		t.Error("finish timestamp before start timestamp")
	}
	if !last().closed.Load() {
		t.Error("backend stream was not closed")
	}
}

func TestStreamTextNoDeltas(t *testing.T) {
	model, _ := replay()
	rec := &recorder{}

	s, err := StreamText(context.Background(), model, "p", WithObservers(rec))
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	if got := readAll(t, s); len(got) != 0 {
		t.Errorf("fragments = %q, want none", got)
	}

	fin := rec.finished(t)
	if fin.Result.Status != StatusSuccess || fin.Result.Output != "" {
		t.Errorf("result = %+v, want success with empty output", fin.Result)
	}
	if fin.Result.Response != nil {
		t.Errorf("response = %v, want nil without deltas", fin.Result.Response)
	}
}

func TestStreamTextSkipsEmptyFragments(t *testing.T) {
	model, _ := replay(DeltaOf(""), DeltaOf("a"), DeltaOf(""), DeltaOf("b"), DeltaOf(""))

	s, err := StreamText(context.Background(), model, "p")
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	got := readAll(t, s)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("fragments = %q, want [a b]", got)
	}
}

func TestStreamTextMidStreamError(t *testing.T) {
	model, last := replay(DeltaOf("Hel"), DeltaErr[string](ErrNetwork), DeltaOf("lo"))
	rec := &recorder{}

	s, err := StreamText(context.Background(), model, "p",
		WithObservers(rec),
		WithSettings(Settings{Retry: NewRetryPolicy(RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond})}),
	)
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}

	got := readAll(t, s)
	if !reflect.DeepEqual(got, []string{"Hel"}) {
		t.Errorf("fragments = %q, want [Hel]", got)
	}
	if !errors.Is(s.Err(), ErrNetwork) {
		t.Errorf("Err() = %v, want ErrNetwork", s.Err())
	}
	if s.Next() {
		t.Error("Next() after failure should return false")
	}

	fin := rec.finished(t)
	if fin.Result.Status != StatusError {
		t.Errorf("status = %v, want error", fin.Result.Status)
	}
	if !errors.Is(fin.Result.Err, ErrNetwork) {
		t.Errorf("result err = %v, want ErrNetwork", fin.Result.Err)
	}
	// Mid-stream failures are never retried.
	if n := model.calls.Load(); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
	if !last().closed.Load() {
		t.Error("backend stream was not closed")
	}
}

func TestStreamTextMissingStreamError(t *testing.T) {
	model, _ := replay(DeltaErr[string](nil))

	s, err := StreamText(context.Background(), model, "p")
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	readAll(t, s)
	if !errors.Is(s.Err(), errMissingStreamError) {
		t.Errorf("Err() = %v, want errMissingStreamError", s.Err())
	}
}

func TestStreamTextCancelBetweenChunks(t *testing.T) {
	model, last := replay(DeltaOf("one"), DeltaOf("two"), DeltaOf("three"))
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := StreamText(ctx, model, "p", WithObservers(rec))
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}

	if !s.Next() || s.Text() != "one" {
		t.Fatalf("first fragment = %q, want one", s.Text())
	}
	cancel()

	if s.Next() {
		t.Errorf("Next() after cancel returned fragment %q", s.Text())
	}
	if !errors.Is(s.Err(), ErrAborted) {
		t.Errorf("Err() = %v, want ErrAborted", s.Err())
	}
	if !errors.Is(s.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled in chain", s.Err())
	}
	if s.Output() != "one" {
		t.Errorf("Output() = %q, want one", s.Output())
	}

	fin := rec.finished(t)
	if fin.Result.Status != StatusAbort {
		t.Errorf("status = %v, want abort", fin.Result.Status)
	}
	if !last().closed.Load() {
		t.Error("backend stream was not closed")
	}
}

func TestStreamTextCancelledBeforeCall(t *testing.T) {
	model, _ := replay(DeltaOf("x"))
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := StreamText(ctx, model, "p", WithObservers(rec))
	if s != nil {
		t.Error("StreamText() returned a stream for a cancelled context")
	}
	var ae *AbortError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AbortError", err)
	}
	if n := model.calls.Load(); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
	if fin := rec.finished(t); fin.Result.Status != StatusAbort {
		t.Errorf("status = %v, want abort", fin.Result.Status)
	}
}

func TestStreamTextRetriesSetup(t *testing.T) {
	rec := &recorder{}
	model := newFakeStreamingModel(func(_ context.Context, call int) (DeltaStream[string], error) {
		if call <= 2 {
			return nil, ErrServer
		}
		return NewDeltaStreamOf("ok"), nil
	})
	model.settings = Settings{Retry: NewRetryPolicy(RetryConfig{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Jitter:     0,
	})}

	s, err := StreamText(context.Background(), model, "p", WithObservers(rec))
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	text, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if text != "ok" {
		t.Errorf("text = %q, want ok", text)
	}
	if n := model.calls.Load(); n != 3 {
		t.Errorf("backend calls = %d, want 3", n)
	}
	if fin := rec.finished(t); fin.Result.Status != StatusSuccess {
		t.Errorf("status = %v, want success", fin.Result.Status)
	}
}

func TestStreamTextSetupFailure(t *testing.T) {
	rec := &recorder{}
	model := newFakeStreamingModel(func(context.Context, int) (DeltaStream[string], error) {
		return nil, ErrUnauthorized
	})

	s, err := StreamText(context.Background(), model, "p",
		WithObservers(rec),
		WithSettings(Settings{Retry: DefaultRetryPolicy()}),
	)
	if s != nil {
		t.Error("StreamText() returned a stream on setup failure")
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if n := model.calls.Load(); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}

	fin := rec.finished(t)
	if fin.Result.Status != StatusError || !errors.Is(fin.Result.Err, ErrUnauthorized) {
		t.Errorf("result = %+v, want error ErrUnauthorized", fin.Result)
	}
}

func TestStreamTextRetriesExhausted(t *testing.T) {
	rec := &recorder{}
	model := newFakeStreamingModel(func(context.Context, int) (DeltaStream[string], error) {
		return nil, ErrServer
	})

	s, err := StreamText(context.Background(), model, "p",
		WithObservers(rec),
		WithSettings(Settings{Retry: fastRetry(2)}),
	)
	if s != nil {
		t.Error("StreamText() returned a stream after retries ran out")
	}
	if err != ErrServer {
		t.Errorf("err = %v, want the last backend error unchanged", err)
	}
	if n := model.calls.Load(); n != 3 {
		t.Errorf("backend calls = %d, want 3 (1 + 2 retries)", n)
	}

	fin := rec.finished(t)
	if fin.Result.Status != StatusError || fin.Result.Err != ErrServer {
		t.Errorf("result = %+v, want a single error finish with ErrServer", fin.Result)
	}
}

func TestStreamTextBackendTimeoutRetried(t *testing.T) {
	rec := &recorder{}
	model := newFakeStreamingModel(func(_ context.Context, call int) (DeltaStream[string], error) {
		if call == 1 {
			return nil, &ProviderError{Provider: "fake", Message: "timeout", Err: errors.Join(ErrNetwork, context.DeadlineExceeded)}
		}
		return NewDeltaStreamOf("ok"), nil
	})

	s, err := StreamText(context.Background(), model, "p",
		WithObservers(rec),
		WithSettings(Settings{Retry: fastRetry(3)}),
	)
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	if text, err := s.Drain(); err != nil || text != "ok" {
		t.Fatalf("Drain() = %q, %v", text, err)
	}
	if n := model.calls.Load(); n != 2 {
		t.Errorf("backend calls = %d, want 2", n)
	}
	if fin := rec.finished(t); fin.Result.Status != StatusSuccess {
		t.Errorf("status = %v, want success", fin.Result.Status)
	}
}

func TestStreamTextMidStreamTimeoutIsError(t *testing.T) {
	rec := &recorder{}
	model, _ := replay(DeltaOf("a"), DeltaErr[string](context.DeadlineExceeded))

	s, err := StreamText(context.Background(), model, "p", WithObservers(rec))
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	if _, err := s.Drain(); IsAbort(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() error = %v, want DeadlineExceeded without abort", err)
	}
	if fin := rec.finished(t); fin.Result.Status != StatusError {
		t.Errorf("status = %v, want error", fin.Result.Status)
	}
}

func TestStreamTextReleasesThrottleAfterSetup(t *testing.T) {
	model, _ := replay(DeltaOf("a"), DeltaOf("b"))
	model.settings = Settings{}.WithThrottle(ThrottleMaxConcurrency(1))

	first, err := StreamText(context.Background(), model, "p")
	if err != nil {
		t.Fatalf("first StreamText() error = %v", err)
	}
	defer first.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	second, err := StreamText(ctx, model, "p")
	if err != nil {
		t.Fatalf("second StreamText() with the first still open: error = %v", err)
	}
	second.Close()
}

func TestTextStreamCloseBeforeEnd(t *testing.T) {
	model, last := replay(DeltaOf("a"), DeltaOf("b"))
	rec := &recorder{}

	s, err := StreamText(context.Background(), model, "p", WithObservers(rec))
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	if !s.Next() {
		t.Fatal("Next() = false, want first fragment")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if s.Next() {
		t.Error("Next() after Close should return false")
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil after Close", s.Err())
	}
	if !last().closed.Load() {
		t.Error("backend stream was not closed")
	}
	if fin := rec.finished(t); fin.Result.Status != StatusAbort {
		t.Errorf("status = %v, want abort", fin.Result.Status)
	}
}

func TestTextStreamCloseAfterEnd(t *testing.T) {
	model, _ := replay(DeltaOf("a"))
	rec := &recorder{}

	s, err := StreamText(context.Background(), model, "p", WithObservers(rec))
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	readAll(t, s)
	s.Close()

	if fin := rec.finished(t); fin.Result.Status != StatusSuccess {
		t.Errorf("status = %v, want success", fin.Result.Status)
	}
}

func TestTextStreamAll(t *testing.T) {
	model, _ := replay(DeltaOf("a"), DeltaOf("b"), DeltaErr[string](ErrDecode))

	s, err := StreamText(context.Background(), model, "p")
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}

	var got []string
	var gotErr error
	for text, err := range s.All() {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, text)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("fragments = %q, want [a b]", got)
	}
	if !errors.Is(gotErr, ErrDecode) {
		t.Errorf("iterator error = %v, want ErrDecode", gotErr)
	}
}

func TestTextStreamAllBreakCloses(t *testing.T) {
	model, last := replay(DeltaOf("a"), DeltaOf("b"), DeltaOf("c"))
	rec := &recorder{}

	s, err := StreamText(context.Background(), model, "p", WithObservers(rec))
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	for text := range s.All() {
		if text == "a" {
			break
		}
	}

	if !last().closed.Load() {
		t.Error("breaking out of All() should close the backend stream")
	}
	if fin := rec.finished(t); fin.Result.Status != StatusAbort {
		t.Errorf("status = %v, want abort", fin.Result.Status)
	}
}

func TestStreamTextSettingsInMetadata(t *testing.T) {
	model, _ := replay(DeltaOf("x"))
	model.settings = Settings{}.WithMaxCompletionTokens(64)
	rec := &recorder{}

	s, err := StreamText(context.Background(), model, "p",
		WithObservers(rec),
		WithSettings(Settings{}.WithTemperature(0.5)),
	)
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	s.Drain()

	events := rec.all()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	started, finished := events[0].Metadata.Settings, events[1].Metadata.Settings
	if !reflect.DeepEqual(started, finished) {
		t.Errorf("settings differ between events: %v vs %v", started, finished)
	}
	want := map[string]any{"max_completion_tokens": 64, "temperature": 0.5}
	if !reflect.DeepEqual(started, want) {
		t.Errorf("settings = %v, want %v", started, want)
	}
	if model.Settings().Temperature != nil {
		t.Error("per-call settings leaked into the model")
	}
}

func TestStreamTextRunMetadata(t *testing.T) {
	model, _ := replay(DeltaOf("x"))
	runRec := &recorder{}
	run := NewRun(WithSessionID("sess"), WithUserID("user"), WithRunObserver(runRec))

	s, err := StreamText(context.Background(), model, "p", WithRun(run), WithFunctionID("story"))
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	s.Drain()

	md := runRec.finished(t).Metadata
	if md.RunID != run.RunID || md.RunID == "" {
		t.Errorf("RunID = %q, want %q", md.RunID, run.RunID)
	}
	if md.SessionID != "sess" || md.UserID != "user" {
		t.Errorf("SessionID, UserID = %q, %q, want sess, user", md.SessionID, md.UserID)
	}
	if md.FunctionID != "story" {
		t.Errorf("FunctionID = %q, want story", md.FunctionID)
	}
	if md.Model.Provider != "fake" || md.Model.ModelName != "fake-1" {
		t.Errorf("Model = %+v", md.Model)
	}
}

func TestStreamTextObserverFailureIsolated(t *testing.T) {
	model, _ := replay(DeltaOf("x"))
	rec := &recorder{}
	var handled []error
	run := NewRun(WithErrorHandler(func(err error) { handled = append(handled, err) }))

	panicky := ObserverFunc(func(Event) error { panic("observer bug") })
	failing := ObserverFunc(func(Event) error { return errors.New("sink down") })

	s, err := StreamText(context.Background(), model, "p",
		WithRun(run),
		WithObservers(panicky, failing, rec),
	)
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	text, err := s.Drain()
	if err != nil || text != "x" {
		t.Fatalf("Drain() = %q, %v, want x, nil", text, err)
	}

	rec.finished(t)
	if len(handled) != 4 {
		t.Fatalf("handled %d observer errors, want 4", len(handled))
	}
	var oe *ObserverError
	if !errors.As(handled[0], &oe) || oe.EventType != EventStarted {
		t.Errorf("handled[0] = %v, want ObserverError on started", handled[0])
	}
}

func TestStreamTextCallIDsUnique(t *testing.T) {
	model, _ := replay(DeltaOf("x"))
	rec := &recorder{}

	for i := 0; i < 10; i++ {
		s, err := StreamText(context.Background(), model, "p", WithObservers(rec))
		if err != nil {
			t.Fatalf("StreamText() error = %v", err)
		}
		s.Drain()
	}

	seen := make(map[string]bool)
	for _, e := range rec.all() {
		if e.Type == EventStarted {
			if seen[e.Metadata.CallID] {
				t.Errorf("duplicate call id %q", e.Metadata.CallID)
			}
			seen[e.Metadata.CallID] = true
		}
	}
	if len(seen) != 10 {
		t.Errorf("got %d distinct call ids, want 10", len(seen))
	}
}
