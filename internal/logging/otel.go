// internal/logging/otel.go
package logging

import (
	"context"
	"fmt"
	"os"

	otellog "go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// otelCore forwards zap entries to an OTEL LoggerProvider. It is a thin
// adapter rather than a full bridge: ctxengine only needs entry forwarding,
// not the bridge package's field-mapping machinery.
type otelCore struct {
	zapcore.LevelEnabler
	logger otellog.Logger
	fields []zapcore.Field
}

func newOtelCore(provider otellog.LoggerProvider, level zapcore.LevelEnabler) zapcore.Core {
	return &otelCore{
		LevelEnabler: level,
		logger:       provider.Logger("ctxengine"),
	}
}

func (c *otelCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &otelCore{LevelEnabler: c.LevelEnabler, logger: c.logger, fields: merged}
}

func (c *otelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *otelCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	record := otellog.Record{}
	record.SetTimestamp(ent.Time)
	record.SetSeverityText(ent.Level.String())
	record.SetSeverity(zapLevelToOtel(ent.Level))
	record.SetBody(otellog.StringValue(ent.Message))
	for k, v := range enc.Fields {
		record.AddAttributes(otellog.KeyValue{Key: k, Value: otellog.StringValue(fmt.Sprintf("%v", v))})
	}

	c.logger.Emit(context.Background(), record)
	return nil
}

func (c *otelCore) Sync() error { return nil }

func zapLevelToOtel(lvl zapcore.Level) otellog.Severity {
	switch {
	case lvl >= zapcore.ErrorLevel:
		return otellog.SeverityError
	case lvl >= zapcore.WarnLevel:
		return otellog.SeverityWarn
	case lvl >= zapcore.InfoLevel:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}

// newDualCore creates core with console (stderr) and/or OTEL outputs.
func newDualCore(cfg *Config, otelProvider otellog.LoggerProvider) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Console {
		baseEncoder := newEncoder(cfg.Format)
		encoder, err := NewRedactingEncoder(baseEncoder, cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		writer := zapcore.AddSync(os.Stderr)
		cores = append(cores, zapcore.NewCore(encoder, writer, cfg.Level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, newOtelCore(otelProvider, cfg.Level))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	// Wrap with sampling if enabled
	core = newSampledCore(core, cfg.Sampling)

	return core, nil
}
