package ws

import "time"

func deadlineSoon() time.Time {
	return time.Now().Add(time.Second)
}
