package shard

import (
	"fmt"

	"scrapscii/internal/record"
)

// Batcher accumulates records and flushes them through a Writer every
// tableLen records. It is not safe for concurrent use.
type Batcher struct {
	writer   Writer
	tableLen int
	index    int
	table    []record.Record
}

// NewBatcher returns a batcher whose first shard gets startIndex.
func NewBatcher(writer Writer, tableLen, startIndex int) *Batcher {
	if tableLen <= 0 {
		tableLen = 1
	}
	return &Batcher{
		writer:   writer,
		tableLen: tableLen,
		index:    startIndex,
		table:    make([]record.Record, 0, tableLen),
	}
}

// Append adds rec and returns the shard written when the table filled up.
func (b *Batcher) Append(rec record.Record) (*Shard, error) {
	b.table = append(b.table, rec)
	if len(b.table) < b.tableLen {
		return nil, nil
	}
	return b.flush()
}

// Flush writes the residual table, if any, as a final shorter shard.
func (b *Batcher) Flush() (*Shard, error) {
	if len(b.table) == 0 {
		return nil, nil
	}
	return b.flush()
}

func (b *Batcher) flush() (*Shard, error) {
	shard, err := b.writer.Write(b.index, b.table)
	if err != nil {
		return nil, fmt.Errorf("persist shard %d: %w", b.index, err)
	}
	b.index++
	b.table = make([]record.Record, 0, b.tableLen)
	return &shard, nil
}

// NextIndex is the index the next shard will be written under.
func (b *Batcher) NextIndex() int {
	return b.index
}
