package chain

import "time"

// NowMillis is the timestamp written into createAt/updateAt fields.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
