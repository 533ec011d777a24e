package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/frcoutreach/outreachnet/pkg/config"
)

type threadRef struct {
	id       string
	category string
}

func (r threadRef) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", r.id)
	enc.AddString("category", r.category)
	return nil
}

func TestFlatEncoder(t *testing.T) {
	var buf bytes.Buffer

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:    "timestamp",
		LevelKey:   "level",
		MessageKey: "message",
	}

	core := zapcore.NewCore(NewFlatEncoder(encoderConfig), zapcore.AddSync(&buf), zapcore.InfoLevel)
	logger := zap.New(core).With(zap.String("component", "thread-repo"))

	logger.Info("thread created",
		zap.Object("thread", threadRef{id: "t1", category: "fundraising"}),
		zap.Int("comment_count", 0),
		zap.Error(errors.New("boom")))

	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		t.Fatal("expected entry to end with a newline")
	}

	var logObj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logObj); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}

	checks := map[string]interface{}{
		"message":         "thread created",
		"level":           "info",
		"component":       "thread-repo",
		"thread.id":       "t1",
		"thread.category": "fundraising",
		"comment_count":   float64(0),
		"error":           "boom",
	}
	for k, want := range checks {
		if logObj[k] != want {
			t.Errorf("field %q = %v, want %v", k, logObj[k], want)
		}
	}
	if _, ok := logObj["timestamp"]; !ok {
		t.Error("Expected 'timestamp' field in log output")
	}
	if _, ok := logObj["thread"]; ok {
		t.Error("nested object should have been flattened")
	}
}

func TestFlatEncoderCloneIsolation(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(NewFlatEncoder(zapcore.EncoderConfig{MessageKey: "message"}), zapcore.AddSync(&buf), zapcore.InfoLevel)
	base := zap.New(core)
	_ = base.With(zap.String("request_id", "abc"))

	base.Info("plain")

	var logObj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logObj); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if _, ok := logObj["request_id"]; ok {
		t.Error("context field leaked from a derived logger")
	}
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"json", "text", "flat"} {
		t.Run(format, func(t *testing.T) {
			if err := InitLogger(&config.LoggingConfig{Level: "DEBUG", Format: format}); err != nil {
				t.Fatalf("InitLogger(%s) failed: %v", format, err)
			}
			if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
				t.Error("expected debug level to be enabled")
			}
		})
	}
}
