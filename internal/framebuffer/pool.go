package framebuffer

import "sync"

// framePool holds FrameSize byte slices so the telephony hot path does not
// allocate a new frame for every 400ms of audio.
var framePool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, FrameSize)
		return &buf
	},
}

func acquire(size int) []byte {
	if size != FrameSize {
		return make([]byte, size)
	}
	return *(framePool.Get().(*[]byte))
}

// Release returns a frame obtained from Drain to the pool.
// Frames of any other size are left to the garbage collector.
func Release(frame []byte) {
	if cap(frame) < FrameSize || len(frame) != FrameSize {
		return
	}
	frame = frame[:FrameSize]
	framePool.Put(&frame)
}
