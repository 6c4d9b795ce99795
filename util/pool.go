package util

import (
	"bufio"
	"io"
	"sync"
)

// readerPool recycles the buffered readers that back session line
// buffers, so a churn of short-lived connections does not allocate a
// fresh DefaultBufSize buffer per peer.
var readerPool = sync.Pool{
	New: func() interface{} {
		return bufio.NewReaderSize(nil, DefaultBufSize)
	},
}

// GetReader retrieves a pooled reader reset to read from r.  Callers
// must return it with [PutReader] when finished.
func GetReader(r io.Reader) *bufio.Reader {
	br := readerPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// PutReader returns a reader to the pool for reuse.
func PutReader(br *bufio.Reader) {
	if br == nil {
		return
	}
	br.Reset(nil)
	readerPool.Put(br)
}
