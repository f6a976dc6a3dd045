package logutil

import (
    "bytes"
    "encoding/json"
    "log"
    "strings"
    "testing"
)

func TestLogf_TextFieldsSorted(t *testing.T) {
    SetJSON(false)
    var buf bytes.Buffer
    l := log.New(&buf, "", 0)
    Logf(l, LevelWarn, map[string]any{"peer": 2, "eid": 7}, "lookup %s", "failed")
    got := strings.TrimSpace(buf.String())
    if got != "WARN lookup failed eid=7 peer=2" { t.Fatalf("unexpected line %q", got) }
}

func TestLogf_JSON(t *testing.T) {
    SetJSON(true)
    defer SetJSON(false)
    var buf bytes.Buffer
    l := log.New(&buf, "", 0)
    Logf(l, LevelError, map[string]any{"eid": 12}, "bad %d", 1)
    var evt map[string]any
    if err := json.Unmarshal(buf.Bytes(), &evt); err != nil { t.Fatalf("json: %v (%q)", err, buf.String()) }
    if evt["level"] != "error" || evt["msg"] != "bad 1" || evt["eid"] != float64(12) {
        t.Fatalf("unexpected event %#v", evt)
    }
}
