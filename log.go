package main

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

func init() {
	InitLoggerForTest()
}

func InitLoggerForTest() {
	Log, _ = zap.NewDevelopment()
}

// InitLogger replaces the root logger. The returned func flushes buffered output.
func InitLogger(conf *LogConf) func() {
	if !conf.Async {
		Log, _ = zap.NewDevelopment()
		return func() { _ = Log.Sync() }
	}

	buffer := &zapcore.BufferedWriteSyncer{
		Size:          conf.BufferSize,
		FlushInterval: time.Second * time.Duration(conf.FlushInterval),
		WS:            os.Stdout,
	}
	writeSyncer := zapcore.AddSync(buffer)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		writeSyncer,
		zapcore.DebugLevel,
	)

	Log = zap.New(core)
	return func() {
		_ = Log.Sync()
		_ = buffer.Stop()
	}
}
