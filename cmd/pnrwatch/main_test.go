package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const okPayload = `{"data":{"pnrResponse":{"trainNo":"12951","trainName":"MUMBAI RAJDHANI","doj":"24-11-2025","sourceName":"Mumbai Central","destinationName":"New Delhi","passengerStatus":[{"number":1,"bookingStatus":"WL 10","currentStatus":"WL 4","prediction":"Confirm","predictionPercentage":"88"}]}}}`

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := buildRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T, dir, apiURL string) string {
	t.Helper()
	t.Setenv("GOOGLE_CHAT_WEBHOOK", "")
	path := filepath.Join(dir, "pnrwatch.toml")
	data := fmt.Sprintf(`
references = ["111", "222"]
status_file = %q

[api]
url_template = "%s/status/{pnr}"
retry_delay = "1ms"
max_retries = 2
`, filepath.ToSlash(filepath.Join(dir, "status.json")), apiURL)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/222") {
			_, _ = w.Write([]byte(`{"data":{"pnrResponse":{"error":"Invalid PNR"}}}`))
			return
		}
		_, _ = w.Write([]byte(okPayload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHelpMentionsCommands(t *testing.T) {
	out, _, err := runCLI(t, "--help")
	require.NoError(t, err)
	for _, want := range []string{"pnrwatch", "check", "show", "version"} {
		assert.Contains(t, out, want)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pnrwatch dev\n", out)
}

func TestCheck_PartialFailureExitsZero(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, newAPI(t).URL)

	out, _, err := runCLI(t, "--config", cfgPath, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Checking PNR: 111")
	assert.Contains(t, out, "Checking PNR: 222")
	assert.Contains(t, out, "Summary: 1 successful, 1 failed")

	b, err := os.ReadFile(filepath.Join(dir, "status.json"))
	require.NoError(t, err)
	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &stored))
	assert.Contains(t, stored, "111")
	assert.NotContains(t, stored, "222")
}

func TestCheck_ReferenceOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, newAPI(t).URL)

	out, _, err := runCLI(t, "--config", cfgPath, "check", "-r", "333", "--reference", "444")
	require.NoError(t, err)
	assert.Contains(t, out, "Checking 2 PNR(s)")
	assert.Contains(t, out, "Checking PNR: 333")
	assert.NotContains(t, out, "Checking PNR: 111")
	assert.Contains(t, out, "Summary: 2 successful, 0 failed")
}

func TestCheck_MalformedWebhookIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, newAPI(t).URL)
	t.Setenv("GOOGLE_CHAT_WEBHOOK", "chat.googleapis.com/v1/spaces/x/messages")

	statusPath := filepath.Join(dir, "status.json")
	seeded := `{"111":{"timestamp":"2025-10-31T09:30:00Z","train":"12951 MUMBAI RAJDHANI","passenger_status":[{"current_status":"WL 9"}]}}`
	require.NoError(t, os.WriteFile(statusPath, []byte(seeded), 0o644))

	out, _, err := runCLI(t, "--config", cfgPath, "check", "--reference", "111", "--status-file", statusPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Status has changed!")
	assert.Contains(t, out, "Failed to send notification")
	assert.Contains(t, out, "Summary: 1 successful, 0 failed")

	b, err := os.ReadFile(statusPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"current_status": "WL 4"`)
}

func TestCheck_UnreadableStatusFileFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, newAPI(t).URL)

	// a directory where the file should be cannot be read
	statusDir := filepath.Join(dir, "as-dir")
	require.NoError(t, os.Mkdir(statusDir, 0o755))

	_, _, err := runCLI(t, "--config", cfgPath, "check", "--status-file", statusDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load status file")
}

func TestCheck_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nmax_retries = 0\n"), 0o644))

	_, _, err := runCLI(t, "--config", path, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestShow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, newAPI(t).URL)
	_, _, err := runCLI(t, "--config", cfgPath, "check")
	require.NoError(t, err)

	out, _, err := runCLI(t, "--config", cfgPath, "show")
	require.NoError(t, err)
	var all map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Equal(t, "12951 MUMBAI RAJDHANI", all["111"]["train"])

	out, _, err = runCLI(t, "--config", cfgPath, "show", "-r", "111")
	require.NoError(t, err)
	var one map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &one))
	assert.Equal(t, "Mumbai Central → New Delhi", one["route"])

	_, _, err = runCLI(t, "--config", cfgPath, "show", "-r", "999")
	require.Error(t, err)

	out, _, err = runCLI(t, "--config", cfgPath, "show", "-r", "111", "-o", "yaml")
	require.NoError(t, err)
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, "12951 MUMBAI RAJDHANI", fromYAML["train"])
	assert.Contains(t, out, "passenger_status:")

	_, _, err = runCLI(t, "--config", cfgPath, "show", "-o", "xml")
	require.Error(t, err)
}
