package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly at limit", "hello", 5, "hello"},
		{"longer than limit", "hello world", 5, "hello..."},
		{"empty string", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.s, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
			}
		})
	}
}

func TestHandleHookFailFirstN(t *testing.T) {
	origFail, origCount := failFirstN, reqCount
	defer func() { failFirstN, reqCount = origFail, origCount }()
	failFirstN = 2
	reqCount = 0

	for i := 1; i <= 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"body":"hi"}`))
		w := httptest.NewRecorder()
		handleHook(w, req)

		wantStatus := http.StatusOK
		if i <= 2 {
			wantStatus = http.StatusInternalServerError
		}
		if w.Code != wantStatus {
			t.Errorf("request %d status = %d, want %d", i, w.Code, wantStatus)
		}
	}
}
