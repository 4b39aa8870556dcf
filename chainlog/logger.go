// Package chainlog is a thin wrapper around zap's SugaredLogger, in the
// same shape as the teacher repo's log package: a lazily-initialized
// global logger that components acquire a Named() child of.
package chainlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	root  Logger
	mutex sync.Mutex
)

// Logger is the subset of zap's SugaredLogger this module relies on.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Named(name string) Logger
}

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) Named(name string) Logger {
	return &logger{l.SugaredLogger.Named(name)}
}

// Global returns the process-wide root logger, creating a sane
// production default the first time it is needed.
func Global() Logger {
	mutex.Lock()
	defer mutex.Unlock()
	if root == nil {
		z, err := zap.NewProduction()
		if err != nil {
			z = zap.NewNop()
		}
		root = &logger{z.Sugar()}
	}
	return root
}

// Named returns a child of the global logger scoped to name, which is
// how every chain component (builder, controller, individual outputs)
// identifies itself in log lines.
func Named(name string) Logger {
	return Global().Named(name)
}
