package service

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages on the wire are google.protobuf.Struct values whose fields use
// the same camelCase JSON names as the models. decode and encode convert
// between a Struct and a Go value through its JSON form.

func decode(msg *structpb.Struct, v any) error {
	if msg == nil {
		msg = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("malformed request: %w", err))
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("failed to build response: %w", err)
	}
	return msg, nil
}

func respond(v any) (*connect.Response[structpb.Struct], error) {
	msg, err := encode(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

type empty struct{}
