package record

import (
	"bytes"
	"io"
	"math"
	"path/filepath"
	"testing"
	"time"

	"portfetch/doggie"
	"portfetch/packet"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/require"
)

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error {
	b.closed = true
	return nil
}

func TestWriterRoundTrip(t *testing.T) {
	out := &bufCloser{}
	w := NewWriter(out, map[string]string{"target": "127.0.0.1:19001"})

	at := time.UnixMilli(1700000000123)
	require.NoError(t, w.Write(doggie.Snapshot{
		Kind: packet.KindSpectrum, Token: 1, Label: 0xFEEDFACE, Tick: 7,
		Values: []float64{-math.Pi, -math.Pi}, FetchedAt: at,
	}))
	require.NoError(t, w.Write(doggie.Snapshot{
		Kind: packet.KindMeter, Token: 2, Label: 2, TX: true,
		Values: []float64{math.E}, FetchedAt: at,
	}))
	require.Equal(t, 2, w.Rows())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.True(t, out.closed)
	require.Error(t, w.Write(doggie.Snapshot{}))

	data := bytes.NewReader(out.Bytes())
	f, err := parquet.OpenFile(data, int64(data.Len()))
	require.NoError(t, err)
	v, ok := f.Lookup("target")
	require.True(t, ok)
	require.Equal(t, "127.0.0.1:19001", v)

	r := parquet.NewGenericReader[SnapshotRow](data)
	defer r.Close()
	rows := make([]SnapshotRow, 4)
	n, err := r.Read(rows)
	if err != nil {
		require.ErrorIs(t, err, io.EOF)
	}
	require.Equal(t, 2, n)
	require.Equal(t, "spectrum", rows[0].Kind)
	require.Equal(t, int64(0xFEEDFACE), rows[0].Label)
	require.Equal(t, int64(7), rows[0].Tick)
	require.Equal(t, at.UnixMilli(), rows[0].FetchedUnixMs)
	require.Equal(t, []float64{-math.Pi, -math.Pi}, rows[0].Values)
	require.Equal(t, "meter", rows[1].Kind)
	require.True(t, rows[1].TX)
	require.Equal(t, []float64{math.E}, rows[1].Values)
}

func TestCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "snap.parquet")
	w, err := Create(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(doggie.Snapshot{Kind: packet.KindMeter, Values: []float64{1}}))
	require.NoError(t, w.Close())
	require.FileExists(t, path)
}
