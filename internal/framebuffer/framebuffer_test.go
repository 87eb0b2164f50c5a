package framebuffer

import (
	"bytes"
	"testing"
)

func collect(b *Buffer) [][]byte {
	var frames [][]byte
	for f := range b.Drain() {
		frames = append(frames, f)
	}
	return frames
}

func TestNewDefaultsFrameSize(t *testing.T) {
	b := New(0)
	if b.FrameLen() != FrameSize {
		t.Errorf("expected frame size %d, got %d", FrameSize, b.FrameLen())
	}
	if FrameSize != 3200 {
		t.Errorf("expected FrameSize 3200, got %d", FrameSize)
	}
}

func TestDrainEmpty(t *testing.T) {
	b := New(FrameSize)
	if frames := collect(b); len(frames) != 0 {
		t.Errorf("expected no frames from empty buffer, got %d", len(frames))
	}
}

func TestNoFrameBeforeFullFrame(t *testing.T) {
	b := New(FrameSize)
	b.Append(make([]byte, FrameSize-1))
	if frames := collect(b); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
	if b.Buffered() != FrameSize-1 {
		t.Errorf("expected %d buffered, got %d", FrameSize-1, b.Buffered())
	}
}

func TestRemainderRetainedAcrossAppends(t *testing.T) {
	b := New(FrameSize)
	chunk := make([]byte, 1000)

	for i := 0; i < 3; i++ {
		b.Append(chunk)
		if frames := collect(b); len(frames) != 0 {
			t.Fatalf("append %d: expected no frames, got %d", i+1, len(frames))
		}
	}

	b.Append(chunk)
	frames := collect(b)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after 4000 bytes, got %d", len(frames))
	}
	if len(frames[0]) != FrameSize {
		t.Errorf("expected frame of %d bytes, got %d", FrameSize, len(frames[0]))
	}
	if b.Buffered() != 800 {
		t.Errorf("expected 800 bytes retained, got %d", b.Buffered())
	}

	b.Append(chunk)
	if frames := collect(b); len(frames) != 0 {
		t.Errorf("expected no frame with 1800 buffered, got %d", len(frames))
	}
	if b.Buffered() != 1800 {
		t.Errorf("expected 1800 buffered, got %d", b.Buffered())
	}
}

func TestOrderPreserved(t *testing.T) {
	const size = 8
	b := New(size)

	var written []byte
	for i := 0; i < 50; i++ {
		n := (i*7)%13 + 1
		chunk := make([]byte, n)
		for j := range chunk {
			chunk[j] = byte(len(written) + j)
		}
		written = append(written, chunk...)
		b.Append(chunk)
	}

	var got []byte
	for _, f := range collect(b) {
		if len(f) != size {
			t.Fatalf("expected frame len %d, got %d", size, len(f))
		}
		got = append(got, f...)
	}

	whole := len(written) / size * size
	if !bytes.Equal(got, written[:whole]) {
		t.Error("drained frames do not match appended bytes in order")
	}
	if b.Buffered() != len(written)-whole {
		t.Errorf("expected remainder %d, got %d", len(written)-whole, b.Buffered())
	}
}

func TestDrainStopsEarlyKeepsFrames(t *testing.T) {
	b := New(4)
	b.Append([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})

	for f := range b.Drain() {
		if !bytes.Equal(f, []byte{1, 2, 3, 4}) {
			t.Fatalf("unexpected first frame %v", f)
		}
		break
	}
	if b.Buffered() != 5 {
		t.Fatalf("expected 5 bytes left after early stop, got %d", b.Buffered())
	}

	frames := collect(b)
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte{5, 6, 7, 8}) {
		t.Errorf("expected second frame [5 6 7 8], got %v", frames)
	}
}

func TestReset(t *testing.T) {
	b := New(4)
	b.Append([]byte{1, 2, 3})
	b.Reset()
	if b.Buffered() != 0 {
		t.Errorf("expected empty buffer after reset, got %d", b.Buffered())
	}
}

func TestReleaseReusesFrames(t *testing.T) {
	b := New(FrameSize)
	b.Append(make([]byte, FrameSize))
	frames := collect(b)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	Release(frames[0])
	Release([]byte{1, 2, 3})
}
