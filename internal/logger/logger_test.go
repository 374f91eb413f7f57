package logger_test

import (
	"bytes"
	"testing"

	"pcode/internal/logger"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{"quiet", false, false},
		{"debug", true, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := logger.New(&buf, test.debug, true)

			l.Debug("exec", "kind", "assignment")
			assert.Equal(t, test.wantDebug, bytes.Contains(buf.Bytes(), []byte("exec")))

			l.Warn("Run failed")
			assert.Contains(t, buf.String(), "Run failed")
			assert.Contains(t, buf.String(), "PCODE")
		})
	}
}
