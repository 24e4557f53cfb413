package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "escrowd", "test")
	logger.Info("call executed", "method", "createOffer")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "call executed", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "escrowd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "createOffer", line["method"])
	require.Contains(t, line, "timestamp")
}

func TestSetupWithFileWritesRotatingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrowd.log")
	logger := SetupWithFile("escrowd", "", FileOptions{Path: path})
	logger.Warn("offer store reopened")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "offer store reopened")
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("keystore", "/secret/path").Value.String())
	require.Equal(t, "createOffer", MaskField("method", "createOffer").Value.String())
	require.Equal(t, "", MaskField("keystore", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "offerid")
}
