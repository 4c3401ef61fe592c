package shroud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Codec provides content-type aware marshaling.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}

// jsonCodec implements Codec for JSON.
type jsonCodec struct{}

// JSONCodec returns a JSON codec. It is the vault's default payload codec.
func JSONCodec() Codec {
	return &jsonCodec{}
}

func (c *jsonCodec) ContentType() string {
	return "application/json"
}

func (c *jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// yamlCodec implements Codec for YAML.
type yamlCodec struct{}

// YAMLCodec returns a YAML codec.
func YAMLCodec() Codec {
	return &yamlCodec{}
}

func (c *yamlCodec) ContentType() string {
	return "application/yaml"
}

func (c *yamlCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *yamlCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// msgpackCodec implements Codec for MessagePack.
type msgpackCodec struct{}

// MsgpackCodec returns a MessagePack codec.
func MsgpackCodec() Codec {
	return &msgpackCodec{}
}

func (c *msgpackCodec) ContentType() string {
	return "application/msgpack"
}

func (c *msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// CodecFor picks a codec from a file name or extension:
// ".json", ".yaml"/".yml" and ".msgpack"/".mp".
func CodecFor(name string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = "." + strings.ToLower(strings.TrimPrefix(name, "."))
	}
	switch ext {
	case ".json":
		return JSONCodec(), nil
	case ".yaml", ".yml":
		return YAMLCodec(), nil
	case ".msgpack", ".mp":
		return MsgpackCodec(), nil
	default:
		return nil, newConfigError("codec", fmt.Sprintf("no codec for %q", name))
	}
}

// codecByContentType resolves the codec recorded in a blob header.
func codecByContentType(contentType string) (Codec, error) {
	for _, c := range []Codec{JSONCodec(), YAMLCodec(), MsgpackCodec()} {
		if c.ContentType() == contentType {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unsupported content type %q", contentType)
}
