package redisx

import (
	"fmt"
	"time"
)

const (
	// Cache of a single listing's JSON: produce:{id}
	KeyProduceCache = "produce:%s"

	// Dedup event processing in the notifier: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLProduceCache = 1 * time.Minute
	TTLDedup        = 48 * time.Hour
)

// Pub/sub channels the socket edge subscribes to. One channel per role plus
// one per user id.
func ChannelRole(role string) string { return fmt.Sprintf("rt:role:%s", role) }

func ChannelUser(userID string) string { return fmt.Sprintf("rt:user:%s", userID) }
