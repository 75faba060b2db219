package journal

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, j.Record(EventScanStarted, "scan-1", "", map[string]int{"regions": 2}))
	require.NoError(t, j.Record(EventRegionStarted, "scan-1", "us-east-1", nil))
	require.NoError(t, j.RecordError(EventRegionFailed, "scan-1", "us-west-2", nil, errors.New("throttled")))
	require.NoError(t, j.Record(EventScanCompleted, "scan-1", "", nil))
	require.NoError(t, j.Close())

	files, err := filepath.Glob(filepath.Join(dir, "costhound-*.journal"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	r, err := NewReader(files[0])
	require.NoError(t, err)
	defer r.Close()

	var entries []Entry
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		entries = append(entries, *e)
	}

	require.Len(t, entries, 4)
	assert.Equal(t, EventScanStarted, entries[0].Type)
	assert.Equal(t, int64(1), entries[0].Sequence)
	assert.Equal(t, "scan-1", entries[0].ScanID)
	assert.Equal(t, "us-east-1", entries[1].Region)
	assert.Equal(t, "throttled", entries[2].Error)
	assert.Equal(t, int64(4), entries[3].Sequence)
}

func TestReplayFiltersBySince(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Record(EventScanStarted, "scan-1", "", nil))
	require.NoError(t, j.Record(EventScanCompleted, "scan-1", "", nil))
	require.NoError(t, j.Close())

	var seen []EventType
	err = Replay(dir, time.Time{}, func(e *Entry) error {
		seen = append(seen, e.Type)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventScanStarted, EventScanCompleted}, seen)

	// A cutoff in the future filters everything out
	seen = nil
	err = Replay(dir, time.Now().Add(time.Hour), func(e *Entry) error {
		seen = append(seen, e.Type)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestReplayPropagatesHandlerError(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Record(EventScanStarted, "scan-1", "", nil))
	require.NoError(t, j.Close())

	boom := errors.New("boom")
	err = Replay(dir, time.Time{}, func(*Entry) error { return boom })
	assert.ErrorIs(t, err, boom)
}
