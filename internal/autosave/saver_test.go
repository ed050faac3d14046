package autosave

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-annotator/internal/annotation"
	"github.com/MimeLyc/video-annotator/internal/media"
	"github.com/MimeLyc/video-annotator/internal/persistence"
	"github.com/MimeLyc/video-annotator/internal/session"
	"github.com/MimeLyc/video-annotator/pkg/icron"
)

type stillPlayer struct {
	mu  sync.Mutex
	pos float64
}

func (p *stillPlayer) Load(context.Context) (media.Metadata, error) {
	return media.Metadata{Duration: 2, Width: 64, Height: 48}, nil
}

func (p *stillPlayer) Seek(_ context.Context, seconds float64) (float64, error) {
	p.mu.Lock()
	p.pos = seconds
	p.mu.Unlock()
	return seconds, nil
}

func (p *stillPlayer) Capture(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return []byte(fmt.Sprintf("jpeg@%.2f", p.pos)), nil
}

func (p *stillPlayer) Close() error { return nil }

type memorySink struct {
	name string
	err  error

	mu   sync.Mutex
	docs []Document
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Write(_ context.Context, doc Document) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.docs = append(s.docs, doc)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

type memoryObjects struct {
	objects map[string][]byte
}

func (m *memoryObjects) PutDocument(_ context.Context, name string, data []byte) error {
	m.objects[name] = data
	return nil
}

func openedManager(t *testing.T) (*session.Manager, *session.Session) {
	t.Helper()
	m := session.NewManager(func(string) (media.Player, error) {
		return &stillPlayer{}, nil
	}, session.WithDefaultFPS(5))
	t.Cleanup(func() { _ = m.Close() })

	s, err := m.Open("clip.mp4", 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Info().Loaded }, 2*time.Second, 5*time.Millisecond)
	return m, s
}

func addObject(t *testing.T, s *session.Session) {
	t.Helper()
	require.NoError(t, s.Add(1, annotation.NewObject(1, 2, 3, 4, 0, "#FF0000", nil, nil)))
}

func TestSaver_SaveWritesEverySinkAndMarksSaved(t *testing.T) {
	m, s := openedManager(t)
	addObject(t, s)
	require.False(t, s.IsSaved())

	a := &memorySink{name: "a"}
	b := &memorySink{name: "b"}
	saver := NewSaver(m, cron.New(), "", WithSinks(a, b))

	res, err := saver.Save(context.Background(), "run/1")
	require.NoError(t, err)
	assert.Equal(t, "run_1.json", res.File)
	assert.Equal(t, []string{"a", "b"}, res.Sinks)
	assert.True(t, s.IsSaved())

	require.Equal(t, 1, a.count())
	doc := a.docs[0]
	assert.Equal(t, "clip.mp4", doc.Src)
	assert.Equal(t, session.DefaultFormatVersion, doc.Version)

	imp, err := session.Import(doc.Data, session.DefaultFormatVersion)
	require.NoError(t, err)
	assert.Equal(t, 1, imp.Annotations.Len())
}

func TestSaver_FailedSinkKeepsSessionDirty(t *testing.T) {
	m, s := openedManager(t)
	addObject(t, s)

	ok := &memorySink{name: "ok"}
	bad := &memorySink{name: "bad", err: errors.New("disk full")}
	saver := NewSaver(m, cron.New(), "", WithSinks(ok, bad))

	res, err := saver.Save(context.Background(), "")
	require.Error(t, err)
	assert.True(t, session.IsErrorKind(err, session.ErrUnknown))
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, []string{"ok"}, res.Sinks)
	assert.Equal(t, "annotations.json", res.File)
	assert.False(t, s.IsSaved())
}

func TestSaver_SaveWithoutVideo(t *testing.T) {
	m := session.NewManager(func(string) (media.Player, error) { return &stillPlayer{}, nil })
	saver := NewSaver(m, cron.New(), "", WithSinks(&memorySink{name: "a"}))

	_, err := saver.Save(context.Background(), "x")
	assert.True(t, session.IsErrorKind(err, session.ErrNoVideo))
}

func TestSaver_TickOnlySavesDirtySessions(t *testing.T) {
	m, s := openedManager(t)
	sink := &memorySink{name: "a"}
	saver := NewSaver(m, cron.New(), "", WithSinks(sink), WithDocumentName("auto"))

	saver.tick(context.Background())
	assert.Equal(t, 0, sink.count(), "a fresh session has nothing to save")

	addObject(t, s)
	saver.tick(context.Background())
	require.Equal(t, 1, sink.count())
	assert.Equal(t, "auto.json", sink.docs[0].Name)

	saver.tick(context.Background())
	assert.Equal(t, 1, sink.count())
}

func TestSaver_Schedule(t *testing.T) {
	m := session.NewManager(func(string) (media.Player, error) { return &stillPlayer{}, nil })

	c := cron.New(cron.WithParser(icron.Parser))
	require.NoError(t, NewSaver(m, c, "*/30 * * * * *").Schedule(context.Background()))
	assert.Len(t, c.Entries(), 1)

	c = cron.New(cron.WithParser(icron.Parser))
	require.NoError(t, NewSaver(m, c, "").Schedule(context.Background()))
	assert.Empty(t, c.Entries())

	assert.Error(t, NewSaver(m, c, "not a cron").Schedule(context.Background()))
}

func TestDirSink_WritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saves")
	sink := NewDirSink(dir)

	require.NoError(t, sink.Write(context.Background(), Document{Name: "a.json", Data: []byte(`{"v":1}`)}))
	require.NoError(t, sink.Write(context.Background(), Document{Name: "a.json", Data: []byte(`{"v":2}`)}))

	data, err := os.ReadFile(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))
	_, err = os.Stat(filepath.Join(dir, "a.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSQLiteSink_StoresDocument(t *testing.T) {
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "annotator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sink := NewSQLiteSink(store)
	require.NoError(t, sink.Write(context.Background(), Document{
		Name: "a.json", Src: "clip.mp4", Version: "v2.0.0", Data: []byte("{}"),
	}))

	doc, err := store.LoadDocument(context.Background(), "a.json")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", doc.Src)
	assert.Equal(t, "sqlite", sink.Name())
}

func TestObjectSink_UploadsDocument(t *testing.T) {
	objects := &memoryObjects{objects: map[string][]byte{}}
	sink := NewObjectSink(objects)

	require.NoError(t, sink.Write(context.Background(), Document{Name: "a.json", Data: []byte("{}")}))
	assert.Equal(t, []byte("{}"), objects.objects["a.json"])
	assert.Equal(t, "minio", sink.Name())
}

func TestSaver_Reschedule(t *testing.T) {
	m := session.NewManager(func(string) (media.Player, error) { return &stillPlayer{}, nil })
	c := cron.New(cron.WithParser(icron.Parser))
	saver := NewSaver(m, c, "*/30 * * * * *")

	require.NoError(t, saver.Reschedule("@every 1m", "early"))
	assert.Empty(t, c.Entries(), "nothing is registered before Schedule")
	assert.Equal(t, "early", saver.documentName())

	require.NoError(t, saver.Schedule(context.Background()))
	require.Len(t, c.Entries(), 1)
	first := c.Entries()[0].ID

	require.NoError(t, saver.Reschedule("0 */5 * * * *", ""))
	require.Len(t, c.Entries(), 1)
	assert.NotEqual(t, first, c.Entries()[0].ID)
	assert.Equal(t, "early", saver.documentName())

	assert.Error(t, saver.Reschedule("bad", ""))
	assert.Len(t, c.Entries(), 1)

	require.NoError(t, saver.Reschedule("", ""))
	assert.Empty(t, c.Entries())
}
