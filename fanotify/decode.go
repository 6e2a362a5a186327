package fanotify

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// RawRecord is the kernel's struct fanotify_event_metadata.
type RawRecord = unix.FanotifyEventMetadata

const (
	MetadataSize = int(unsafe.Sizeof(RawRecord{}))

	// fanotify(7) uses 200 in the example code
	MaxRecords = 200
	BufferSize = MaxRecords * MetadataSize
)

type ProtocolError struct {
	Offset  int
	Version uint8
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unsupported fanotify metadata version %d at offset %d (want %d)", e.Version, e.Offset, unix.FANOTIFY_METADATA_VERSION)
}

// DecodeRecords walks the first n bytes of buf as a sequence of metadata records.
// A truncated or malformed tail ends the walk silently. A version mismatch fails
// the whole batch, including records already walked.
func DecodeRecords(buf []byte, n int) ([]RawRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > len(buf) {
		n = len(buf)
	}

	var recs []RawRecord
	off := 0
	remaining := n
	for remaining >= MetadataSize {
		var rec RawRecord
		// copy out: records aren't guaranteed to be aligned within buf
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&rec)), MetadataSize), buf[off:off+MetadataSize])

		if rec.Event_len < uint32(MetadataSize) || rec.Event_len > uint32(remaining) {
			break
		}
		if rec.Vers != unix.FANOTIFY_METADATA_VERSION {
			return nil, &ProtocolError{Offset: off, Version: rec.Vers}
		}

		recs = append(recs, rec)
		off += int(rec.Event_len)
		remaining -= int(rec.Event_len)
	}

	return recs, nil
}

// ReadRecords does one read from the notification handle into buf and decodes it.
// EAGAIN and EINTR yield no records and no error.
func ReadRecords(fd int, buf []byte) ([]RawRecord, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("fanotify read: %w", err)
	}

	return DecodeRecords(buf, n)
}
