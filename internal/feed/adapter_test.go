package feed_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"modrelay/internal/feed"
	"modrelay/internal/submissions"
)

type fakeSource struct {
	mu            sync.Mutex
	snapshot      submissions.Snapshot
	changes       []submissions.ChangeEvent
	snapshotCalls int
	pollCursors   []int64
	failPolls     int
	failSnapshots int
}

func (s *fakeSource) Snapshot(context.Context) (submissions.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotCalls++
	if s.failSnapshots > 0 {
		s.failSnapshots--
		return submissions.Snapshot{}, errors.New("database is locked")
	}
	return s.snapshot, nil
}

func (s *fakeSource) ChangesSince(_ context.Context, cursor int64, limit int) (submissions.ChangeBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollCursors = append(s.pollCursors, cursor)
	if s.failPolls > 0 {
		s.failPolls--
		return submissions.ChangeBatch{}, errors.New("connection reset")
	}
	batch := submissions.ChangeBatch{Cursor: cursor}
	for _, event := range s.changes {
		if event.Seq <= cursor {
			continue
		}
		if len(batch.Events) == limit {
			batch.More = true
			break
		}
		batch.Events = append(batch.Events, event)
		batch.Cursor = event.Seq
	}
	return batch, nil
}

func (s *fakeSource) addChange(event submissions.ChangeEvent) {
	s.mu.Lock()
	s.changes = append(s.changes, event)
	s.mu.Unlock()
}

func (s *fakeSource) failNextPolls(n int) {
	s.mu.Lock()
	s.failPolls = n
	s.mu.Unlock()
}

func (s *fakeSource) snapshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotCalls
}

type recorder struct {
	mu     sync.Mutex
	events []submissions.ChangeEvent
	failOn int64
}

func (r *recorder) HandleEvent(_ context.Context, event submissions.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != 0 && event.Seq == r.failOn {
		r.failOn = 0
		return errors.New("queue full")
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) snapshot() []submissions.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]submissions.ChangeEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) waitFor(t *testing.T, n int) []submissions.ChangeEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if events := r.snapshot(); len(events) >= n {
			return events
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, have %#v", n, r.snapshot())
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func sub(id string, status submissions.Status) submissions.Submission {
	return submissions.Submission{ID: id, Content: id + "@gmail.com", SubmittedBy: "u-" + id, Status: status}
}

func fastOptions() feed.Options {
	return feed.Options{
		PollInterval:     time.Millisecond,
		BatchSize:        10,
		RetryInterval:    time.Millisecond,
		MaxRetryInterval: 4 * time.Millisecond,
	}
}

func runAdapter(t *testing.T, adapter *feed.Adapter, handler feed.Handler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- adapter.Run(ctx, handler)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel, done
}

func TestSessionReplaysSnapshotThenStreamsChanges(t *testing.T) {
	source := &fakeSource{snapshot: submissions.Snapshot{
		Cursor:      4,
		Submissions: []submissions.Submission{sub("a", submissions.StatusApproved)},
	}}
	source.changes = []submissions.ChangeEvent{
		{Type: submissions.ChangeModified, Submission: sub("old", submissions.StatusApproved), Seq: 3},
		{Type: submissions.ChangeModified, Submission: sub("b", submissions.StatusRejected), Seq: 5},
	}
	rec := &recorder{}
	adapter := feed.New(source, fastOptions())
	runAdapter(t, adapter, rec)

	events := rec.waitFor(t, 2)
	if events[0].Type != submissions.ChangeAdded || !events[0].Replay || events[0].Submission.ID != "a" {
		t.Fatalf("expected replayed snapshot first, got %#v", events[0])
	}
	if events[1].Type != submissions.ChangeModified || events[1].Replay || events[1].Submission.ID != "b" {
		t.Fatalf("expected live change after snapshot cursor, got %#v", events[1])
	}

	source.addChange(submissions.ChangeEvent{Type: submissions.ChangeModified, Submission: sub("c", submissions.StatusApproved), Seq: 6})
	events = rec.waitFor(t, 3)
	if events[2].Submission.ID != "c" {
		t.Fatalf("expected streamed change, got %#v", events[2])
	}
	for _, event := range events {
		if event.Submission.ID == "old" {
			t.Fatal("changes at or before the snapshot cursor must not be re-emitted")
		}
	}
	deadline := time.After(2 * time.Second)
	for {
		status := adapter.Status()
		if status.Connected && status.Cursor == 6 && status.Sessions == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("unexpected status %#v", status)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestReconnectReplaysSnapshotAndDeliversGapChanges(t *testing.T) {
	source := &fakeSource{snapshot: submissions.Snapshot{
		Cursor:      1,
		Submissions: []submissions.Submission{sub("s1", submissions.StatusApproved)},
	}}
	rec := &recorder{}
	adapter := feed.New(source, fastOptions())
	runAdapter(t, adapter, rec)
	rec.waitFor(t, 1)

	source.failNextPolls(1)
	source.addChange(submissions.ChangeEvent{Type: submissions.ChangeModified, Submission: sub("s2", submissions.StatusRejected), Seq: 2})

	events := rec.waitFor(t, 3)
	if source.snapshots() < 2 {
		t.Fatalf("expected a new session after the poll failure, snapshots=%d", source.snapshots())
	}
	if events[1].Type != submissions.ChangeAdded || !events[1].Replay || events[1].Submission.ID != "s1" {
		t.Fatalf("expected snapshot replay after reconnect, got %#v", events[1])
	}
	if events[2].Type != submissions.ChangeModified || events[2].Submission.ID != "s2" {
		t.Fatalf("expected gap change after replay, got %#v", events[2])
	}
	if status := adapter.Status(); status.LastError == "" || status.Sessions < 2 {
		t.Fatalf("expected reconnect recorded in status, got %#v", status)
	}
}

func TestRunRetriesSnapshotFailuresAndStopsOnCancel(t *testing.T) {
	source := &fakeSource{failSnapshots: 3, snapshot: submissions.Snapshot{Submissions: []submissions.Submission{sub("a", submissions.StatusRejected)}}}
	rec := &recorder{}
	adapter := feed.New(source, fastOptions())
	cancel, done := runAdapter(t, adapter, rec)

	rec.waitFor(t, 1)
	if got := source.snapshots(); got != 4 {
		t.Fatalf("expected 4 snapshot attempts, got %d", got)
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHandlerErrorRedeliversFailedEvent(t *testing.T) {
	source := &fakeSource{}
	source.changes = []submissions.ChangeEvent{
		{Type: submissions.ChangeModified, Submission: sub("a", submissions.StatusApproved), Seq: 1},
		{Type: submissions.ChangeModified, Submission: sub("b", submissions.StatusApproved), Seq: 2},
	}
	rec := &recorder{failOn: 2}
	adapter := feed.New(source, fastOptions())
	runAdapter(t, adapter, rec)

	events := rec.waitFor(t, 2)
	if events[0].Submission.ID != "a" || events[1].Submission.ID != "b" {
		t.Fatalf("expected a then b after retry, got %#v", events)
	}
	time.Sleep(20 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 2 {
		t.Fatalf("handled events must not be redelivered, got %#v", got)
	}
}

type memoryCheckpoint struct {
	mu    sync.Mutex
	saved map[string]int64
}

func (c *memoryCheckpoint) LoadCursor(_ context.Context, name string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq, ok := c.saved[name]
	return seq, ok, nil
}

func (c *memoryCheckpoint) SaveCursor(_ context.Context, name string, seq int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved[name] = seq
	return nil
}

func (c *memoryCheckpoint) get(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved[name]
}

func TestCheckpointResumesFromSavedCursor(t *testing.T) {
	source := &fakeSource{snapshot: submissions.Snapshot{Cursor: 3}}
	source.changes = []submissions.ChangeEvent{
		{Type: submissions.ChangeModified, Submission: sub("before", submissions.StatusApproved), Seq: 1},
		{Type: submissions.ChangeModified, Submission: sub("downtime", submissions.StatusApproved), Seq: 3},
	}
	checkpoint := &memoryCheckpoint{saved: map[string]int64{"relay": 2}}
	opts := fastOptions()
	opts.Checkpoint = checkpoint
	rec := &recorder{}
	runAdapter(t, feed.New(source, opts), rec)

	events := rec.waitFor(t, 1)
	if events[0].Submission.ID != "downtime" {
		t.Fatalf("expected change made while stopped, got %#v", events)
	}
	deadline := time.After(time.Second)
	for checkpoint.get("relay") != 3 {
		select {
		case <-deadline:
			t.Fatalf("expected checkpoint to advance to 3, got %d", checkpoint.get("relay"))
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestCheckpointAheadOfStoreFallsBackToSnapshot(t *testing.T) {
	source := &fakeSource{snapshot: submissions.Snapshot{Cursor: 1}}
	source.changes = []submissions.ChangeEvent{
		{Type: submissions.ChangeModified, Submission: sub("fresh", submissions.StatusApproved), Seq: 2},
	}
	opts := fastOptions()
	opts.Checkpoint = &memoryCheckpoint{saved: map[string]int64{"relay": 50}}
	rec := &recorder{}
	runAdapter(t, feed.New(source, opts), rec)

	if events := rec.waitFor(t, 1); events[0].Submission.ID != "fresh" {
		t.Fatalf("expected change after snapshot cursor, got %#v", events)
	}
}

type countingObserver struct {
	mu      sync.Mutex
	started int
	healthy int
	ended   int
	errs    []error
}

func (o *countingObserver) SessionStarted(context.Context, feed.SessionInfo) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *countingObserver) SessionHealthy(context.Context, feed.SessionInfo) {
	o.mu.Lock()
	o.healthy++
	o.mu.Unlock()
}

func (o *countingObserver) SessionEnded(_ context.Context, _ feed.SessionInfo, err error) {
	o.mu.Lock()
	o.ended++
	o.errs = append(o.errs, err)
	o.mu.Unlock()
}

func TestObserverSeesSessionBoundaries(t *testing.T) {
	source := &fakeSource{failPolls: 1}
	observer := &countingObserver{}
	opts := fastOptions()
	opts.Observer = observer
	cancel, done := runAdapter(t, feed.New(source, opts), &recorder{})

	deadline := time.After(2 * time.Second)
	for {
		observer.mu.Lock()
		started, healthy := observer.started, observer.healthy
		observer.mu.Unlock()
		if started >= 2 && healthy >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected a second, healthy session")
		case <-time.After(2 * time.Millisecond):
		}
	}
	cancel()
	<-done

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if observer.ended < 2 || observer.errs[0] == nil {
		t.Fatalf("expected first session to end with an error, got %#v", observer.errs)
	}
}
