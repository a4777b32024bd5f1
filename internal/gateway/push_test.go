package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signald/internal/tools"
)

func newPushTestServer(t *testing.T, connected func() bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewPushServer(newTestRegistry(t), ":0", connected).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postEvent(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url+"/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	var reply map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("undecodable reply: %v", err)
	}
	return resp.StatusCode, reply
}

func TestPushEventProcessed(t *testing.T) {
	srv := newPushTestServer(t, nil)

	body := `{
		"event_id": "e1",
		"timestamp": "` + time.Now().UTC().Format(time.RFC3339) + `",
		"service": "payment-api",
		"severity": "critical",
		"message": "Service timeout - unable to process requests",
		"details": {"region": "us-east-1"}
	}`
	status, reply := postEvent(t, srv.URL, body)

	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (reply %v)", status, reply)
	}
	if reply["status"] != "processed" {
		t.Errorf("status field = %v", reply["status"])
	}
	if reply["event_id"] != "e1" {
		t.Errorf("event_id = %v", reply["event_id"])
	}
	if reply["classification"] != "network_issue" {
		t.Errorf("classification = %v, want network_issue", reply["classification"])
	}
	if reply["calculated_severity"] != "warning" {
		t.Errorf("calculated_severity = %v, want warning", reply["calculated_severity"])
	}
	if reply["recommendation"] != "Monitor closely - investigate if pattern emerges" {
		t.Errorf("recommendation = %v", reply["recommendation"])
	}
}

func TestPushInvalidJSON(t *testing.T) {
	srv := newPushTestServer(t, nil)

	status, reply := postEvent(t, srv.URL, `{not json`)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if reply["error"] != "Invalid JSON" {
		t.Errorf("error = %v", reply["error"])
	}
}

func TestPushSchemaViolation(t *testing.T) {
	srv := newPushTestServer(t, nil)

	body := `{"event_id":"e2","timestamp":"t","service":"s","severity":"fatal","message":"m"}`
	status, reply := postEvent(t, srv.URL, body)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if reply["error"] == nil || reply["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestPushEventsRejectsGet(t *testing.T) {
	srv := newPushTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPushHealth(t *testing.T) {
	srv := newPushTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var reply map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("undecodable reply: %v", err)
	}
	if reply["status"] != "healthy" {
		t.Errorf("status = %v", reply["status"])
	}
	if reply["service"] != tools.ServiceName {
		t.Errorf("service = %v", reply["service"])
	}
	if reply["listening"] != true {
		t.Errorf("listening = %v", reply["listening"])
	}
	if reply["mcp_connected"] != true {
		t.Errorf("mcp_connected = %v, want true with nil probe", reply["mcp_connected"])
	}
}

func TestPushHealthReportsDisconnected(t *testing.T) {
	srv := newPushTestServer(t, func() bool { return false })

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var reply map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("undecodable reply: %v", err)
	}
	if reply["mcp_connected"] != false {
		t.Errorf("mcp_connected = %v, want false", reply["mcp_connected"])
	}
}
