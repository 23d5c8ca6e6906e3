package rabbitmq

import (
	"fmt"

	"github.com/corray333/food-ordering/order/internal/service/models/event"
	"github.com/spf13/viper"
)

// Topics maps every order event type to the routing key it is published under.
type Topics map[event.Type]string

var defaultTopics = Topics{
	event.TypeOrderCreated:    "order.created",
	event.TypeOrderPaid:       "order.paid",
	event.TypeOrderApproved:   "order.approved",
	event.TypeOrderCancelling: "order.cancelling",
	event.TypeOrderCancelled:  "order.cancelled",
}

var topicConfigKeys = map[event.Type]string{
	event.TypeOrderCreated:    "rabbitmq.topics.order_created",
	event.TypeOrderPaid:       "rabbitmq.topics.order_paid",
	event.TypeOrderApproved:   "rabbitmq.topics.order_approved",
	event.TypeOrderCancelling: "rabbitmq.topics.order_cancelling",
	event.TypeOrderCancelled:  "rabbitmq.topics.order_cancelled",
}

// LoadTopics reads the routing keys from configuration, falling back to the defaults.
func LoadTopics() Topics {
	topics := make(Topics, len(defaultTopics))
	for typ, def := range defaultTopics {
		topics[typ] = def
		if v := viper.GetString(topicConfigKeys[typ]); v != "" {
			topics[typ] = v
		}
	}

	return topics
}

// For returns the routing key for an event type.
func (t Topics) For(typ event.Type) (string, error) {
	topic, ok := t[typ]
	if !ok || topic == "" {
		return "", fmt.Errorf("no topic configured for event type %q", typ)
	}

	return topic, nil
}
