package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugGatedByVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetVerbose(false) })

	SetVerbose(false)
	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Debug("shown %d", 2)
	assert.Contains(t, buf.String(), "[DEBUG] shown 2")
}

func TestInfoAlwaysPrints(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Info("indexed %d files", 3)
	assert.Contains(t, buf.String(), "[INFO] indexed 3 files")
}

func TestWarnAndError(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Warn("w")
	Error("e")
	assert.Contains(t, buf.String(), "[WARN] w")
	assert.Contains(t, buf.String(), "[ERROR] e")
}
