package logging

import (
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

// FlatEncoder writes every entry as a single-level JSON object. Fields added
// with zap.Object or zap.Namespace are flattened into dotted keys so log
// shippers that cannot index nested documents still see every value.
type FlatEncoder struct {
	*zapcore.MapObjectEncoder
	config zapcore.EncoderConfig
}

// NewFlatEncoder creates a flat JSON encoder using the key names of config.
func NewFlatEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &FlatEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		config:           config,
	}
}

// Clone copies the accumulated context fields.
func (e *FlatEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return &FlatEncoder{MapObjectEncoder: clone, config: e.config}
}

// EncodeEntry encodes a log entry followed by a newline.
func (e *FlatEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	enc := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		enc.Fields[k] = v
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	doc := make(map[string]interface{}, len(enc.Fields)+6)
	flatten("", enc.Fields, doc)

	if e.config.TimeKey != "" {
		doc[e.config.TimeKey] = entry.Time.UTC().Format(time.RFC3339Nano)
	}
	if e.config.LevelKey != "" {
		doc[e.config.LevelKey] = entry.Level.String()
	}
	if e.config.MessageKey != "" {
		doc[e.config.MessageKey] = entry.Message
	}
	if e.config.NameKey != "" && entry.LoggerName != "" {
		doc[e.config.NameKey] = entry.LoggerName
	}
	if e.config.CallerKey != "" && entry.Caller.Defined {
		doc[e.config.CallerKey] = entry.Caller.TrimmedPath()
	}
	if e.config.StacktraceKey != "" && entry.Stack != "" {
		doc[e.config.StacktraceKey] = entry.Stack
	}

	buf := bufferPool.Get()
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		buf.Free()
		return nil, err
	}
	return buf, nil
}

func flatten(prefix string, src map[string]interface{}, dst map[string]interface{}) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, dst)
			continue
		}
		dst[key] = v
	}
}
