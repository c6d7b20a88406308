package recordingdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dstar-toolkit/pkg/logger"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recordings.db")
	log := logger.New(logger.Config{Level: "error"})
	db, err := Open(Config{Path: path}, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndLookupByStreamID(t *testing.T) {
	db := testDB(t)

	rec := &Recording{
		StreamID:        0x1234,
		SourceReflector: "REF001 C",
		PeerCallsign:    "SV9OAN  ",
		FilePath:        "4660.dvtool",
		FrameCount:      22,
		RecordedAt:      time.Now(),
	}
	require.NoError(t, db.Record(rec))

	found, err := db.ByStreamID(0x1234)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "4660.dvtool", found[0].FilePath)
}

func TestByReflectorOrdersNewestFirst(t *testing.T) {
	db := testDB(t)

	older := &Recording{StreamID: 1, SourceReflector: "REF030 A", FilePath: "1.dvtool", RecordedAt: time.Now().Add(-time.Hour)}
	newer := &Recording{StreamID: 2, SourceReflector: "REF030 A", FilePath: "2.dvtool", RecordedAt: time.Now()}
	require.NoError(t, db.Record(older))
	require.NoError(t, db.Record(newer))

	found, err := db.ByReflector("REF030 A", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "2.dvtool", found[0].FilePath)
	require.Equal(t, "1.dvtool", found[1].FilePath)
}

func TestRecentRespectsLimit(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Record(&Recording{StreamID: uint16(i), FilePath: "x.dvtool", RecordedAt: time.Now()}))
	}

	found, err := db.Recent(2)
	require.NoError(t, err)
	require.Len(t, found, 2)
}
