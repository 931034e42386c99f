package handlers

import (
	"bytes"
	"encoding/hex"
	"sync"

	"artnetnode/internal/logger"
	"artnetnode/internal/node"
)

// Log writes changed DMX slices to the debug log.
type Log struct {
	log *logger.Log

	mu   sync.Mutex
	last []byte
}

var _ node.Handler = (*Log)(nil)

func NewLog(log logger.Logger, name string) *Log {
	return &Log{log: log.With(logger.Fields{"module": "dmx", "handler": name})}
}

func (l *Log) OnDMX(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bytes.Equal(l.last, data) {
		return
	}
	l.last = data
	l.log.Debugf("dmx: %s", hex.EncodeToString(data))
}

func (l *Log) OnTimeout() {
	l.mu.Lock()
	l.last = nil
	l.mu.Unlock()
	l.log.Warn("dmx timeout")
}

func (l *Log) OnShutdown() {
	l.log.Debug("shutdown")
}
