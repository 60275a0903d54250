package transport

import "time"

const closeWriteTimeout = 2 * time.Second

func deadlineNow() time.Time {
	return time.Now().Add(closeWriteTimeout)
}
