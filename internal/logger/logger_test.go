package logger

import (
	"testing"

	"artnetnode/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConf
		level   string
		wantErr bool
	}{
		{name: "text debug", cfg: config.LogConf{Level: "debug"}, level: "debug"},
		{name: "json warn", cfg: config.LogConf{Level: "warn", Format: "json"}, level: "warning"},
		{name: "bad level", cfg: config.LogConf{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: config.LogConf{Level: "info", Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.level, log.GetLevel())
		})
	}
}

func TestWith(t *testing.T) {
	log := Discard().With(Fields{"module": "node"})
	assert.Equal(t, "node", log.Data["module"])

	child := log.With(Fields{"peer": "a"})
	assert.Equal(t, "node", child.Data["module"])
	assert.Equal(t, "a", child.Data["peer"])
	_, ok := log.Data["peer"]
	assert.False(t, ok, "parent entry is not modified")
}
