package fanotify

import (
	"github.com/orbstack/fanmon/flagset"
	"golang.org/x/sys/unix"
)

type Event uint64

type Response uint32

// event vocabulary usable with FAN_CLASS_CONTENT and fd-based reporting
var Events = flagset.New(
	flagset.Flag[Event]{Name: "FAN_ACCESS", Value: unix.FAN_ACCESS},
	flagset.Flag[Event]{Name: "FAN_MODIFY", Value: unix.FAN_MODIFY},
	flagset.Flag[Event]{Name: "FAN_CLOSE_WRITE", Value: unix.FAN_CLOSE_WRITE},
	flagset.Flag[Event]{Name: "FAN_CLOSE_NOWRITE", Value: unix.FAN_CLOSE_NOWRITE},
	flagset.Flag[Event]{Name: "FAN_OPEN", Value: unix.FAN_OPEN},
	flagset.Flag[Event]{Name: "FAN_OPEN_EXEC", Value: unix.FAN_OPEN_EXEC},
	flagset.Flag[Event]{Name: "FAN_Q_OVERFLOW", Value: unix.FAN_Q_OVERFLOW},
	flagset.Flag[Event]{Name: "FAN_OPEN_PERM", Value: unix.FAN_OPEN_PERM},
	flagset.Flag[Event]{Name: "FAN_ACCESS_PERM", Value: unix.FAN_ACCESS_PERM},
	flagset.Flag[Event]{Name: "FAN_OPEN_EXEC_PERM", Value: unix.FAN_OPEN_EXEC_PERM},
	flagset.Flag[Event]{Name: "FAN_ONDIR", Value: unix.FAN_ONDIR},
	flagset.Flag[Event]{Name: "FAN_EVENT_ON_CHILD", Value: unix.FAN_EVENT_ON_CHILD},
)

// events held by the kernel until we write a response
var PermissionEvents = flagset.New(
	flagset.Flag[Event]{Name: "FAN_OPEN_PERM", Value: unix.FAN_OPEN_PERM},
	flagset.Flag[Event]{Name: "FAN_ACCESS_PERM", Value: unix.FAN_ACCESS_PERM},
	flagset.Flag[Event]{Name: "FAN_OPEN_EXEC_PERM", Value: unix.FAN_OPEN_EXEC_PERM},
)

var permissionMask = PermissionEvents.Union()

// control-channel keywords
var Responses = flagset.New(
	flagset.Flag[Response]{Name: "ALLOW", Value: unix.FAN_ALLOW},
	flagset.Flag[Response]{Name: "DENY", Value: unix.FAN_DENY},
)

var (
	Allow = mustResponse("ALLOW")
	Deny  = mustResponse("DENY")
)

func mustResponse(name string) flagset.Flag[Response] {
	f, err := Responses.Parse(name)
	if err != nil {
		panic(err)
	}
	return f
}

func IsPermission(mask Event) bool {
	return mask&permissionMask != 0
}
