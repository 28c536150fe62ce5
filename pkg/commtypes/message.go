package commtypes

import "fmt"

// MessageG is one key/value record handed to the store layer. The
// surrounding runtime has already deserialized it; the store treats the
// payload as opaque.
type MessageG[K, V any] struct {
	Key       K
	Value     V
	Timestamp int64
}

func (m MessageG[K, V]) String() string {
	return fmt.Sprintf("Msg: {Key: %v, Value: %v, Ts: %d}", m.Key, m.Value, m.Timestamp)
}

func MessageGToKVPair[K, V any](msg *MessageG[K, V]) KeyValuePair[K, V] {
	return KeyValuePair[K, V]{Key: msg.Key, Value: msg.Value}
}

type KeyValuePair[K, V any] struct {
	Key   K
	Value V
}
