package realtime

import (
	"github.com/vmihailenco/msgpack/v5"

	domainrt "workify/services/conversation-api/internal/domain/realtime"
)

// Envelope is what travels over the broker between instances.
type Envelope struct {
	Origin      string               `msgpack:"origin"`
	Destination domainrt.Destination `msgpack:"destination"`
	Event       domainrt.Event       `msgpack:"event"`
}

func encodeEnvelope(env Envelope) ([]byte, error) {
	return msgpack.Marshal(env)
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
