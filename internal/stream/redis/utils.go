package redis

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// startID is the exclusive XREAD id for entries newer than now-backtime.
func startID(clock clockwork.Clock, backtime time.Duration) string {
	return fmt.Sprintf("%d-0", clock.Now().Add(-backtime).UnixMilli())
}
