package reactor

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var diagnostics atomic.Pointer[zap.Logger]

func init() {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		zapcore.ErrorLevel,
	)
	diagnostics.Store(zap.New(core).Named("reactor"))
}

// SetLogger replaces the diagnostic sink receiving unhandled errors and dropped signals.
// A nil logger silences it.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	diagnostics.Store(l)
}

// Logger returns the current diagnostic sink.
func Logger() *zap.Logger {
	return diagnostics.Load()
}

func onErrorDropped(err error) {
	Logger().Error("unhandled stream error", zap.Error(err))
}

func onSignalDropped[T any](sig Signal[T]) {
	Logger().Debug("signal dropped after termination", zap.Stringer("signal", sig))
}
