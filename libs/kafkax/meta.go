// Package kafkax carries the conventions shared by every Kafka producer and
// consumer in the system: broker list parsing, event metadata headers, and
// trace-context propagation.
package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta identifies a message for inbox deduplication. Producers set the
// event_id and event_type headers; the fallbacks cover messages written by
// other tooling.
type EventMeta struct {
	EventID   string
	EventType string
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg.Headers, "event_id"),
		EventType: HeaderValue(msg.Headers, "event_type"),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// SplitBrokers parses a comma-separated broker list from config.
func SplitBrokers(raw string) []string {
	var out []string
	for _, broker := range strings.Split(raw, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			out = append(out, broker)
		}
	}
	return out
}
