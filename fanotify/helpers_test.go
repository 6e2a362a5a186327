package fanotify

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func encodeRecord(rec RawRecord) []byte {
	if rec.Event_len == 0 {
		rec.Event_len = uint32(MetadataSize)
	}
	if rec.Metadata_len == 0 {
		rec.Metadata_len = uint16(MetadataSize)
	}
	if rec.Vers == 0 {
		rec.Vers = unix.FANOTIFY_METADATA_VERSION
	}
	out := make([]byte, MetadataSize)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&rec)), MetadataSize))
	return out
}

func encodeRecords(recs ...RawRecord) []byte {
	var out []byte
	for _, rec := range recs {
		out = append(out, encodeRecord(rec)...)
	}
	return out
}

func record(mask Event, fd int32, pid int32) RawRecord {
	return RawRecord{
		Mask: uint64(mask),
		Fd:   fd,
		Pid:  pid,
	}
}

var errNoSuchFd = errors.New("no such fd")

// fakeDescriptors resolves from a fixed table and counts closes.
type fakeDescriptors struct {
	paths  map[int32]string
	closed map[int32]int
}

func newFakeDescriptors(paths map[int32]string) *fakeDescriptors {
	if paths == nil {
		paths = map[int32]string{}
	}
	return &fakeDescriptors{
		paths:  paths,
		closed: map[int32]int{},
	}
}

func (f *fakeDescriptors) Resolve(fd int32) (string, error) {
	if f.closed[fd] > 0 {
		return "", errNoSuchFd
	}
	path, ok := f.paths[fd]
	if !ok {
		return "", errNoSuchFd
	}
	return path, nil
}

func (f *fakeDescriptors) Close(fd int32) error {
	f.closed[fd]++
	if f.closed[fd] > 1 {
		return errNoSuchFd
	}
	return nil
}

func fdOpen(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}

// openTemp opens a fresh file without an *os.File. The caller owns the fd:
// either the code under test closes it or the test must.
func openTemp(t *testing.T, name string) (int, string) {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	require.NoError(t, err)
	return fd, path
}

type testPipe struct {
	r, w    int
	wClosed bool
}

func (p *testPipe) closeWriter() {
	if !p.wClosed {
		p.wClosed = true
		unix.Close(p.w)
	}
}

func newPipe(t *testing.T) *testPipe {
	t.Helper()

	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_CLOEXEC))
	p := &testPipe{r: fds[0], w: fds[1]}
	t.Cleanup(func() {
		unix.Close(p.r)
		p.closeWriter()
	})
	return p
}
