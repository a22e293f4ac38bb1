package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMakeRequest(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotContentType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	origServer, origTimeout, origToken := serverAddr, timeout, jwtToken
	defer func() { serverAddr, timeout, jwtToken = origServer, origTimeout, origToken }()
	serverAddr = srv.URL
	timeout = 5 * time.Second
	jwtToken = "test-token"

	resp, err := makeRequest("POST", "/subscriptions", map[string]string{"target_url": "https://example.com"})
	if err != nil {
		t.Fatalf("makeRequest() error = %v", err)
	}
	defer resp.Body.Close()

	if gotMethod != "POST" {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotPath != "/subscriptions" {
		t.Errorf("path = %q, want /subscriptions", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want Bearer test-token", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}

	var body map[string]string
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	if body["target_url"] != "https://example.com" {
		t.Errorf("body target_url = %q", body["target_url"])
	}
}

func TestMakeRequestNoBodyNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("Authorization = %q, want empty", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			t.Errorf("Content-Type = %q, want empty", ct)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	origServer, origToken := serverAddr, jwtToken
	defer func() { serverAddr, jwtToken = origServer, origToken }()
	serverAddr = srv.URL
	jwtToken = ""

	resp, err := makeRequest("GET", "/healthz", nil)
	if err != nil {
		t.Fatalf("makeRequest() error = %v", err)
	}
	resp.Body.Close()
}

func TestPrintResponseErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Subscription not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	origServer := serverAddr
	defer func() { serverAddr = origServer }()
	serverAddr = srv.URL

	resp, err := makeRequest("GET", "/subscriptions/999", nil)
	if err != nil {
		t.Fatalf("makeRequest() error = %v", err)
	}

	if err := printResponse(resp); err == nil {
		t.Error("printResponse() expected error for 404 response")
	}
}
