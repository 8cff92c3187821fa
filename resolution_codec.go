package algfetch

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	c "github.com/unkn0wn-root/algfetch/codec"
)

// ResolutionProtobuf encodes resolutions as a protobuf Struct, for stores
// shared with services that already speak protobuf.
type ResolutionProtobuf struct {
	inner c.Protobuf[*structpb.Struct]
}

var _ c.Codec[Resolution] = ResolutionProtobuf{}

func NewResolutionProtobuf() ResolutionProtobuf {
	return ResolutionProtobuf{inner: c.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })}
}

func (p ResolutionProtobuf) Encode(r Resolution) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"provider": r.Provider,
		"index":    r.Index,
		"legacy":   r.Legacy,
	})
	if err != nil {
		return nil, err
	}
	return p.inner.Encode(s)
}

func (p ResolutionProtobuf) Decode(b []byte) (Resolution, error) {
	s, err := p.inner.Decode(b)
	if err != nil {
		return Resolution{}, err
	}
	f := s.GetFields()
	idx, ok := f["index"]
	if !ok {
		return Resolution{}, fmt.Errorf("algfetch: resolution without index")
	}
	return Resolution{
		Provider: f["provider"].GetStringValue(),
		Index:    int(idx.GetNumberValue()),
		Legacy:   f["legacy"].GetStringValue(),
	}, nil
}
