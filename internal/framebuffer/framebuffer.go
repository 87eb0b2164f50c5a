package framebuffer

import "iter"

// FrameSize is the number of bytes the agent expects per audio message:
// 20 Twilio media chunks of 160 bytes (20ms of 8kHz mu-law each).
const FrameSize = 20 * 160

// Buffer accumulates decoded telephony audio and releases it in fixed-size frames.
// It is owned by a single goroutine and is not safe for concurrent use.
type Buffer struct {
	frameSize int
	data      []byte
	off       int
}

// New creates a buffer that emits frames of frameSize bytes.
// A non-positive size falls back to FrameSize.
func New(frameSize int) *Buffer {
	if frameSize <= 0 {
		frameSize = FrameSize
	}
	return &Buffer{
		frameSize: frameSize,
		data:      make([]byte, 0, 2*frameSize),
	}
}

// FrameLen returns the size of the frames this buffer emits.
func (b *Buffer) FrameLen() int {
	return b.frameSize
}

// Append adds raw audio to the tail of the buffer.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.compact()
	b.data = append(b.data, p...)
}

// Buffered returns the number of bytes held that have not been emitted as a frame.
func (b *Buffer) Buffered() int {
	return len(b.data) - b.off
}

// Drain returns a sequence of every full frame currently buffered, oldest first.
// Each call starts a new sequence. Bytes short of a full frame stay buffered, as
// do frames not yet yielded when the caller stops iterating early.
// Frames come from the shared pool; the consumer owns them and may hand them
// back with Release once written.
func (b *Buffer) Drain() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		defer b.compact()
		for b.Buffered() >= b.frameSize {
			frame := acquire(b.frameSize)
			copy(frame, b.data[b.off:b.off+b.frameSize])
			b.off += b.frameSize
			if !yield(frame) {
				return
			}
		}
	}
}

// Reset discards everything buffered. Used at session teardown.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.off = 0
}

func (b *Buffer) compact() {
	if b.off == 0 {
		return
	}
	n := copy(b.data, b.data[b.off:])
	b.data = b.data[:n]
	b.off = 0
}
