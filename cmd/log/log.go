package log

import (
	"github.com/go-logr/logr"

	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Logger builds the process logger used by all commands. Components receive
// it through their option structs; tests substitute logr.Discard().
func Logger() logr.Logger {
	return zap.New(zap.UseDevMode(true), func(o *zap.Options) {
		o.TimeEncoder = zapcore.RFC3339TimeEncoder
	})
}
