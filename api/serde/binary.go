// Package serde is the single serialization boundary of the module. Activity
// inputs, results, and history event payloads are encoded here and handled as
// opaque bytes everywhere else; the replay executor never inspects payloads.
package serde

// BinarySerde encodes and decodes values at the registry edge.
type BinarySerde interface {
	SerializeBinary(value any) ([]byte, error)
	DeserializeBinary(data []byte, valuePtr any) error
}

// Convert maps a decoded value onto a target Go type by round-tripping it
// through the serializer. This keeps type mapping serializer-agnostic: the
// same orchestrator code works whether payloads were msgpack or JSON encoded.
func Convert(s BinarySerde, value any, targetPtr any) error {
	if value == nil || targetPtr == nil {
		return nil
	}
	data, err := s.SerializeBinary(value)
	if err != nil {
		return err
	}
	return s.DeserializeBinary(data, targetPtr)
}
