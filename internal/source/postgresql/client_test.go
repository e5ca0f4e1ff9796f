package postgresql

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestStatusUpdateFrameLayout(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	frame := statusUpdateFrame(0x10, 0x20, now)

	if len(frame) != 34 {
		t.Fatalf("len(frame) = %d, want 34", len(frame))
	}
	if frame[0] != 'r' {
		t.Fatalf("frame[0] = %q, want 'r'", frame[0])
	}

	received := int64(binary.BigEndian.Uint64(frame[1:9]))
	flushed := int64(binary.BigEndian.Uint64(frame[9:17]))
	applied := int64(binary.BigEndian.Uint64(frame[17:25]))

	if received != 0x10 {
		t.Errorf("received slot = %#x, want %#x (anomaly: flushed repeated in the received slot)", received, 0x10)
	}
	if flushed != 0x10 {
		t.Errorf("flushed slot = %#x, want %#x", flushed, 0x10)
	}
	if applied != 0x20 {
		t.Errorf("applied slot = %#x, want %#x", applied, 0x20)
	}
	if frame[33] != 0x01 {
		t.Errorf("frame[33] = %#x, want 0x01", frame[33])
	}

	micros := int64(binary.BigEndian.Uint64(frame[25:33]))
	wantMicros := now.UnixMicro() - unixToPg2000Micros
	if micros != wantMicros {
		t.Errorf("micros = %d, want %d", micros, wantMicros)
	}
}

func TestStatusUpdateFrameMicrosIsRelativeToY2K(t *testing.T) {
	epoch2000 := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	frame := statusUpdateFrame(0, 0, epoch2000)
	micros := int64(binary.BigEndian.Uint64(frame[25:33]))
	if micros != 0 {
		t.Errorf("micros at 2000-01-01 = %d, want 0", micros)
	}
}
