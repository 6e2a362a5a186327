package fanotify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestEntryText(t *testing.T) {
	t.Parallel()

	tests := map[string]Entry{
		"FAN_OPEN\t5\t123\t/tmp/watched/f":                  {Mask: unix.FAN_OPEN, Fd: 5, Pid: 123, Path: "/tmp/watched/f"},
		"FAN_MODIFY|FAN_CLOSE_WRITE\t6\t1\t/a b/c":          {Mask: unix.FAN_CLOSE_WRITE | unix.FAN_MODIFY, Fd: 6, Pid: 1, Path: "/a b/c"},
		"FAN_Q_OVERFLOW\t-\t-\t-":                           {Mask: unix.FAN_Q_OVERFLOW, Fd: -1},
		"FAN_OPEN_PERM|FAN_ONDIR\t9\t42\t/srv":              {Mask: unix.FAN_OPEN_PERM | unix.FAN_ONDIR, Fd: 9, Pid: 42, Path: "/srv"},
		"-\t3\t-\t/x":                                       {Mask: 0, Fd: 3, Path: "/x"},
		"FAN_ACCESS|FAN_EVENT_ON_CHILD\t0\t7\t/dev/console": {Mask: unix.FAN_ACCESS | unix.FAN_EVENT_ON_CHILD, Fd: 0, Pid: 7, Path: "/dev/console"},
	}

	for want, e := range tests {
		assert.Equal(t, want, e.String())
		assert.Equal(t, want+"\n", string(e.AppendText(nil)))
	}
}

func TestEntryAppendReusesBuffer(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 0, 128)
	buf = Entry{Mask: unix.FAN_OPEN, Fd: 1, Pid: 2, Path: "/a"}.AppendText(buf[:0])
	buf = Entry{Mask: unix.FAN_MODIFY, Fd: 3, Pid: 4, Path: "/b"}.AppendText(buf[:0])
	assert.Equal(t, "FAN_MODIFY\t3\t4\t/b\n", string(buf))
}

func TestEventVocabulary(t *testing.T) {
	t.Parallel()

	for f := range Events.All() {
		got, err := Events.Parse(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	mask, err := Events.ParseList("FAN_OPEN,FAN_MODIFY")
	require.NoError(t, err)
	assert.Equal(t, Event(unix.FAN_OPEN|unix.FAN_MODIFY), mask)

	_, err = Events.ParseList("FAN_OPEN,FAN_BOGUS")
	assert.ErrorContains(t, err, "FAN_BOGUS")
	assert.ErrorContains(t, err, "FAN_OPEN_PERM")
}

func TestPermissionSubset(t *testing.T) {
	t.Parallel()

	for f := range PermissionEvents.All() {
		got, err := Events.Parse(f.Name)
		require.NoError(t, err)
		assert.Equal(t, f.Value, got.Value)
		assert.True(t, IsPermission(f.Value))
	}
	for _, name := range []string{"FAN_ACCESS", "FAN_MODIFY", "FAN_OPEN", "FAN_CLOSE_WRITE", "FAN_Q_OVERFLOW", "FAN_ONDIR"} {
		f, err := Events.Parse(name)
		require.NoError(t, err)
		assert.False(t, IsPermission(f.Value), name)
	}
}

func TestResponseVocabulary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Response(unix.FAN_ALLOW), Allow.Value)
	assert.Equal(t, Response(unix.FAN_DENY), Deny.Value)
	assert.Equal(t, []string{"ALLOW", "DENY"}, Responses.Names())

	_, err := Responses.Parse("allow")
	assert.Error(t, err)
}
