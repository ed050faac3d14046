package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-annotator/internal/config"
)

type fakeScheduler struct {
	called bool
	err    error
}

func (f *fakeScheduler) Schedule(context.Context) error {
	f.called = true
	return f.err
}

type fakeCron struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (f *fakeCron) Start() {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
}

func (f *fakeCron) Stop() context.Context {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func (f *fakeCron) state() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

type fakeHTTP struct {
	listenErr    error
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Addr: "127.0.0.1:0",
		},
	}
}

func TestMain_StartsCronAndHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := &fakeScheduler{}
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, testConfig(), scheduler, cronEngine, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	started, stopped := cronEngine.state()
	assert.True(t, scheduler.called)
	assert.True(t, started)
	assert.True(t, stopped)
}

func TestMain_ScheduleFailureStopsStartup(t *testing.T) {
	scheduler := &fakeScheduler{err: errors.New("bad cron")}
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()

	err := runWithComponents(context.Background(), testConfig(), scheduler, cronEngine, httpSrv)
	require.Error(t, err)

	started, _ := cronEngine.state()
	assert.False(t, started)
	select {
	case <-httpSrv.listenCalled:
		t.Fatal("http server must not start")
	default:
	}
}

func TestMain_HTTPFailureIsReturned(t *testing.T) {
	scheduler := &fakeScheduler{}
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()
	httpSrv.listenErr = errors.New("address already in use")

	err := runWithComponents(context.Background(), testConfig(), scheduler, cronEngine, httpSrv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")

	_, stopped := cronEngine.state()
	assert.True(t, stopped)
}
