package record

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"portfetch/doggie"
	pferrors "portfetch/errors"

	"github.com/segmentio/parquet-go"
)

// SnapshotRow 是落盘的一行快照。
type SnapshotRow struct {
	Kind          string    `parquet:"kind"`
	TX            bool      `parquet:"tx"`
	Label         int64     `parquet:"label"`
	Tick          int64     `parquet:"tick"`
	Token         int64     `parquet:"token"`
	FetchedUnixMs int64     `parquet:"fetched_unix_ms"`
	Values        []float64 `parquet:"values"`
}

// RowFromSnapshot 将快照转换为 parquet 行。
func RowFromSnapshot(s doggie.Snapshot) SnapshotRow {
	return SnapshotRow{
		Kind:          s.Kind.String(),
		TX:            s.TX,
		Label:         int64(s.Label),
		Tick:          int64(s.Tick),
		Token:         int64(s.Token),
		FetchedUnixMs: s.FetchedAt.UnixMilli(),
		Values:        s.Values,
	}
}

// Writer 把快照逐行写入 parquet 文件。
type Writer struct {
	mu     sync.Mutex
	file   io.Closer
	writer *parquet.GenericWriter[SnapshotRow]
	rows   int
	closed bool
}

// NewWriter 创建 parquet 写入器。
// 参数：
// - w: 底层输出，Close 时一并关闭
// - meta: 写入文件尾部的 key/value 元数据（如目标端点）
func NewWriter(w io.WriteCloser, meta map[string]string) *Writer {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make([]parquet.WriterOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, parquet.KeyValueMetadata(k, meta[k]))
	}
	return &Writer{
		file:   w,
		writer: parquet.NewGenericWriter[SnapshotRow](w, opts...),
	}
}

// Create 在 path 处新建 parquet 文件（自动创建父目录）。
func Create(path string, meta map[string]string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, pferrors.Wrap(pferrors.CodeInternal, "create record dir", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, pferrors.Wrap(pferrors.CodeInternal, "create record file", err)
	}
	return NewWriter(f, meta), nil
}

// Write 追加一行快照。
func (w *Writer) Write(s doggie.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return pferrors.Wrap(pferrors.CodeInternal, "record writer closed", os.ErrClosed)
	}
	if _, err := w.writer.Write([]SnapshotRow{RowFromSnapshot(s)}); err != nil {
		return pferrors.Wrap(pferrors.CodeInternal, "write snapshot row", err)
	}
	w.rows++
	return nil
}

// Rows 返回已写入的行数。
func (w *Writer) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Close 写出文件尾并关闭底层输出（幂等）。
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.writer.Close(); err != nil {
		_ = w.file.Close()
		return pferrors.Wrap(pferrors.CodeInternal, "close parquet writer", err)
	}
	return w.file.Close()
}
