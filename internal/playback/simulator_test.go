package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/EgorLis/tgrelaybot/internal/logger"
	"github.com/EgorLis/tgrelaybot/internal/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sent struct {
	chatID int64
	photo  string
	text   string
}

type fakeNotifier struct {
	mu        sync.Mutex
	sent      []sent
	audio     []string
	failPhoto bool
	failText  func(text string) bool
	textFails int // сколько первых SendText отклонить
}

func (f *fakeNotifier) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText != nil && f.failText(text) {
		return errors.New("send failed")
	}
	if f.textFails > 0 {
		f.textFails--
		return errors.New("send failed")
	}
	f.sent = append(f.sent, sent{chatID: chatID, text: text})
	return nil
}

func (f *fakeNotifier) SendPhoto(_ context.Context, chatID int64, photoURL, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPhoto {
		return errors.New("photo rejected")
	}
	f.sent = append(f.sent, sent{chatID: chatID, photo: photoURL, text: caption})
	return nil
}

func (f *fakeNotifier) SendAudio(_ context.Context, _ int64, audioURL, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, audioURL)
	return nil
}

func (f *fakeNotifier) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}

type gate struct {
	d       time.Duration
	release chan struct{}
}

// gateSleeper отдаёт тесту каждое ожидание и держит его до close(release).
type gateSleeper struct {
	started chan gate
}

func (g *gateSleeper) Sleep(ctx context.Context, d time.Duration) error {
	rel := make(chan struct{})
	select {
	case g.started <- gate{d: d, release: rel}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-rel:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextGate(t *testing.T, g *gateSleeper) gate {
	t.Helper()
	select {
	case gt := <-g.started:
		return gt
	case <-time.After(2 * time.Second):
		t.Fatal("playback cycle did not reach the wait")
		return gate{}
	}
}

func newSim(n Notifier) (*Simulator, *queue.Registry) {
	reg := queue.NewRegistry()
	return New(reg, n, logger.NewNop(), DefaultConfig()), reg
}

func titles(msgs []sent) []string {
	var out []string
	for _, m := range msgs {
		for _, line := range strings.Split(m.text, "\n") {
			if strings.HasPrefix(line, "Title: ") {
				out = append(out, strings.TrimPrefix(line, "Title: "))
			}
		}
	}
	return out
}

func TestDrainClampsWaits(t *testing.T) {
	n := &fakeNotifier{}
	sim, reg := newSim(n)
	sl := &recordingSleeper{}
	sim.SetSleeper(sl)

	q := reg.GetOrCreate(7)
	q.Enqueue(queue.Item{Title: "long", Duration: 40, RequestedBy: "a"})
	q.Enqueue(queue.Item{Title: "unknown", Duration: 0, RequestedBy: "b"})
	q.Enqueue(queue.Item{Title: "medium", Duration: 65, RequestedBy: "c"})

	sim.Drain(context.Background(), 7)

	assert.Equal(t, []time.Duration{30 * time.Second, 0, 30 * time.Second}, sl.waits)
	assert.Equal(t, []string{"long", "unknown", "medium"}, titles(n.messages()))
	assert.True(t, q.Empty())
	assert.False(t, q.Playing())
}

func TestDrainEmptyQueue(t *testing.T) {
	n := &fakeNotifier{}
	sim, reg := newSim(n)
	sl := &recordingSleeper{}
	sim.SetSleeper(sl)

	sim.Drain(context.Background(), 1)

	assert.Empty(t, sl.waits)
	assert.Empty(t, n.messages())
	assert.False(t, reg.GetOrCreate(1).Playing())
}

func TestWaitFor(t *testing.T) {
	sim, _ := newSim(&fakeNotifier{})
	assert.Equal(t, time.Duration(0), sim.WaitFor(0))
	assert.Equal(t, 5*time.Second, sim.WaitFor(5))
	assert.Equal(t, 30*time.Second, sim.WaitFor(31))

	fast := New(queue.NewRegistry(), &fakeNotifier{}, logger.NewNop(), Config{MaxWait: 3, Unit: time.Millisecond})
	assert.Equal(t, 3*time.Millisecond, fast.WaitFor(200))
}

func TestAnnounceWithThumbnail(t *testing.T) {
	n := &fakeNotifier{}
	sim, reg := newSim(n)
	sim.SetSleeper(&recordingSleeper{})

	reg.GetOrCreate(1).Enqueue(queue.Item{Title: "pic", Duration: 65, Thumbnail: "https://img/1.jpg", RequestedBy: "Ann"})
	sim.Drain(context.Background(), 1)

	msgs := n.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "https://img/1.jpg", msgs[0].photo)
	assert.Contains(t, msgs[0].text, "Duration: 1:05")
	assert.Contains(t, msgs[0].text, "Requested by: Ann")
}

func TestAnnounceFallsBackToText(t *testing.T) {
	n := &fakeNotifier{failPhoto: true}
	sim, reg := newSim(n)
	sl := &recordingSleeper{}
	sim.SetSleeper(sl)

	reg.GetOrCreate(1).Enqueue(queue.Item{Title: "pic", Duration: 10, Thumbnail: "https://img/1.jpg"})
	sim.Drain(context.Background(), 1)

	msgs := n.messages()
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].photo)
	assert.Equal(t, []string{"pic"}, titles(msgs))
	assert.Equal(t, []time.Duration{10 * time.Second}, sl.waits)
}

func TestCycleFailureMovesToNextItem(t *testing.T) {
	n := &fakeNotifier{failText: func(text string) bool { return strings.Contains(text, "Title: broken") }}
	sim, reg := newSim(n)
	sl := &recordingSleeper{}
	sim.SetSleeper(sl)

	q := reg.GetOrCreate(1)
	q.Enqueue(queue.Item{Title: "broken", Duration: 10})
	q.Enqueue(queue.Item{Title: "fine", Duration: 12})
	sim.Drain(context.Background(), 1)

	msgs := n.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].text, "Error playing song")
	assert.Equal(t, []string{"fine"}, titles(msgs))
	assert.Equal(t, []time.Duration{12 * time.Second}, sl.waits, "failed item is not waited out")
	assert.False(t, q.Playing())
}

func TestSendAudioWhenEnabled(t *testing.T) {
	n := &fakeNotifier{}
	reg := queue.NewRegistry()
	cfg := DefaultConfig()
	cfg.SendAudio = true
	sim := New(reg, n, logger.NewNop(), cfg)
	sim.SetSleeper(&recordingSleeper{})

	reg.GetOrCreate(1).Enqueue(queue.Item{Title: "x", StreamURL: "https://audio/x"})
	sim.Drain(context.Background(), 1)

	assert.Equal(t, []string{"https://audio/x"}, n.audio)
}

func TestSkipDuringWaitStartsOneNewCycle(t *testing.T) {
	n := &fakeNotifier{}
	sim, reg := newSim(n)
	sl := &gateSleeper{started: make(chan gate)}
	sim.SetSleeper(sl)

	var finished []string
	var mu sync.Mutex
	sim.OnFinished = func(_ int64, it queue.Item) {
		mu.Lock()
		finished = append(finished, it.Title)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := reg.GetOrCreate(3)
	q.Enqueue(queue.Item{Title: "a", Duration: 10})
	q.Enqueue(queue.Item{Title: "b", Duration: 20})
	q.Enqueue(queue.Item{Title: "c", Duration: 5})

	sim.Kick(ctx, 3)
	ga := nextGate(t, sl)
	assert.Equal(t, 10*time.Second, ga.d)

	require.True(t, sim.Skip(ctx, 3))
	gb := nextGate(t, sl)
	assert.Equal(t, 20*time.Second, gb.d)

	// старое ожидание доигрывает, но новый цикл не запускает
	close(ga.release)
	select {
	case g := <-sl.started:
		t.Fatalf("stale cycle started another wait: %v", g.d)
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, q.Playing())

	close(gb.release)
	gc := nextGate(t, sl)
	assert.Equal(t, 5*time.Second, gc.d)
	close(gc.release)

	sim.Wait()
	assert.Equal(t, []string{"a", "b", "c"}, titles(n.messages()))
	assert.True(t, q.Empty())
	assert.False(t, q.Playing())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"b", "c"}, finished, "skipped item is not reported as finished")
}

func TestStopDoesNotInterruptWait(t *testing.T) {
	n := &fakeNotifier{}
	sim, reg := newSim(n)
	sl := &gateSleeper{started: make(chan gate)}
	sim.SetSleeper(sl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := reg.GetOrCreate(5)
	q.Enqueue(queue.Item{Title: "a", Duration: 10})
	q.Enqueue(queue.Item{Title: "b", Duration: 10})
	sim.Kick(ctx, 5)
	ga := nextGate(t, sl)

	assert.Equal(t, 1, q.Clear())
	assert.False(t, q.Playing())

	close(ga.release)
	sim.Wait()

	assert.Equal(t, []string{"a"}, titles(n.messages()))
	assert.False(t, q.Playing())
	assert.True(t, q.Empty())
}

func TestStopDuringWaitReportsNothing(t *testing.T) {
	n := &fakeNotifier{}
	sim, reg := newSim(n)
	sl := &gateSleeper{started: make(chan gate)}
	sim.SetSleeper(sl)

	var finished []string
	var mu sync.Mutex
	sim.OnFinished = func(_ int64, it queue.Item) {
		mu.Lock()
		finished = append(finished, it.Title)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := reg.GetOrCreate(6)
	q.Enqueue(queue.Item{Title: "A", Duration: 40})
	sim.Kick(ctx, 6)
	ga := nextGate(t, sl)
	assert.Equal(t, 30*time.Second, ga.d)

	q.Clear()
	close(ga.release)
	sim.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, finished)
	msgs := n.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"A"}, titles(msgs))
}

func TestStopDuringFailedAnnounceSendsNoError(t *testing.T) {
	reg := queue.NewRegistry()
	q := reg.GetOrCreate(2)
	n := &fakeNotifier{failText: func(text string) bool {
		if strings.Contains(text, "Title: a") {
			q.Clear()
			return true
		}
		return false
	}}
	sim := New(reg, n, logger.NewNop(), DefaultConfig())
	sl := &recordingSleeper{}
	sim.SetSleeper(sl)

	q.Enqueue(queue.Item{Title: "a", Duration: 10})
	q.Enqueue(queue.Item{Title: "b", Duration: 10})
	sim.Drain(context.Background(), 2)

	assert.Empty(t, n.messages(), "no error notice for a stopped cycle")
	assert.Empty(t, sl.waits)
	assert.True(t, q.Empty())
	assert.False(t, q.Playing())
}

func TestAnnounceRetriesTextOnce(t *testing.T) {
	n := &fakeNotifier{textFails: 1}
	sim, reg := newSim(n)
	sl := &recordingSleeper{}
	sim.SetSleeper(sl)

	reg.GetOrCreate(1).Enqueue(queue.Item{Title: "plain", Duration: 7})
	sim.Drain(context.Background(), 1)

	msgs := n.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"plain"}, titles(msgs))
	assert.NotContains(t, msgs[0].text, "Error playing song")
	assert.Equal(t, []time.Duration{7 * time.Second}, sl.waits)
}

func TestSkipNothingPlaying(t *testing.T) {
	sim, _ := newSim(&fakeNotifier{})
	assert.False(t, sim.Skip(context.Background(), 9))
	sim.Wait()
}

func TestCancelInterruptsWait(t *testing.T) {
	n := &fakeNotifier{}
	sim, reg := newSim(n)
	sl := &gateSleeper{started: make(chan gate)}
	sim.SetSleeper(sl)

	ctx, cancel := context.WithCancel(context.Background())
	q := reg.GetOrCreate(1)
	q.Enqueue(queue.Item{Title: "a", Duration: 10})
	q.Enqueue(queue.Item{Title: "b", Duration: 10})
	sim.Kick(ctx, 1)
	nextGate(t, sl)

	cancel()
	sim.Wait()

	assert.False(t, q.Playing())
	assert.Equal(t, 1, q.Len(), "remaining item stays queued")
}

func TestTimerSleeper(t *testing.T) {
	var s timerSleeper
	require.NoError(t, s.Sleep(context.Background(), 0))
	require.NoError(t, s.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Sleep(ctx, time.Hour), context.Canceled)
}
