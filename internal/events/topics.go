package events

const (
	TopicOrderCreated   = "market.order.created"
	TopicOrderUpdated   = "market.order.updated"
	TopicProduceCreated = "market.produce.created"
	TopicProduceUpdated = "market.produce.updated"
	TopicProduceRemoved = "market.produce.removed"
	TopicEmail          = "market.email"
)

// Topics lists everything the notifier subscribes to.
func Topics() []string {
	return []string{
		TopicOrderCreated, TopicOrderUpdated,
		TopicProduceCreated, TopicProduceUpdated, TopicProduceRemoved,
	}
}

// Partition key per aggregate id keeps events for one order or listing in order.
func PartitionKey(id string) []byte { return []byte(id) }
