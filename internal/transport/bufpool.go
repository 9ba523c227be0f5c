package transport

import "sync"

// bufPool holds MaxMessageSize read buffers so that every Receive does
// not allocate 64 KiB only to copy a few bytes out of it.
var bufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, MaxMessageSize)
		return &buf
	},
}

func getBuf() *[]byte {
	return bufPool.Get().(*[]byte)
}

func putBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	bufPool.Put(buf)
}

// copyOut returns a right-sized copy of buf[:n].
func copyOut(buf []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, buf[:n])
	return out
}
