// Package codec supplies a JSON wire codec for the kernel's gRPC service,
// standing in for the protoc-gen-go/protoc-gen-go-grpc marshaling that would
// normally back grpc.ServiceDesc; protobuf codegen tooling is out of scope,
// so messages travel as JSON over HTTP/2 framing instead, the same
// transport and streaming semantics with a cheaper wire format to
// hand-maintain.
package codec

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const Name = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return Name }

// Register installs the JSON codec as the well-known content-subtype "json".
// Call it once at process startup, before dialing or serving.
func Register() {
	encoding.RegisterCodec(jsonCodec{})
}
