package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func slowHandler(w http.ResponseWriter, r *http.Request) {
	select {
	case <-time.After(5 * time.Second):
		w.WriteHeader(http.StatusOK)
	case <-r.Context().Done():
	}
}

func TestTimeout(t *testing.T) {
	fast := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/admin/ads")
		w.WriteHeader(http.StatusSeeOther)
		_, _ = w.Write([]byte("saved"))
	})

	tests := []struct {
		name        string
		handler     http.Handler
		method      string
		target      string
		accept      string
		wantStatus  int
		wantBody    string
		wantContent string
	}{
		{"fast form post", fast, http.MethodPost, "/admin/ads", "", http.StatusSeeOther, "saved", ""},
		{"slow page", http.HandlerFunc(slowHandler), http.MethodGet, "/admin/ads", "text/html",
			http.StatusServiceUnavailable, "Request timeout", "text/plain; charset=utf-8"},
		{"slow slot api", http.HandlerFunc(slowHandler), http.MethodGet, "/api/placement/slots", "",
			http.StatusServiceUnavailable, `{"error":"request timeout"}`, "application/json"},
		{"slow delete", http.HandlerFunc(slowHandler), http.MethodDelete, "/admin/ads/7", "",
			http.StatusServiceUnavailable, `{"error":"request timeout"}`, "application/json"},
		{"json accept", http.HandlerFunc(slowHandler), http.MethodGet, "/admin", "application/json",
			http.StatusServiceUnavailable, `{"error":"request timeout"}`, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rr := httptest.NewRecorder()

			Timeout(50*time.Millisecond)(tt.handler).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if body := rr.Body.String(); body != tt.wantBody {
				t.Errorf("Body = %q, want %q", body, tt.wantBody)
			}
			if tt.wantContent != "" {
				if ct := rr.Header().Get("Content-Type"); ct != tt.wantContent {
					t.Errorf("Content-Type = %q, want %q", ct, tt.wantContent)
				}
			}
		})
	}
}

func TestTimeout_HandlerSeesDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	})

	start := time.Now()
	Timeout(time.Minute)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !ok {
		t.Fatal("handler context has no deadline")
	}
	if d := deadline.Sub(start); d < 59*time.Second || d > 61*time.Second {
		t.Errorf("deadline in %v, want about 1m", d)
	}
}

func TestTimeoutWriter(t *testing.T) {
	rr := httptest.NewRecorder()
	tw := &timeoutWriter{ResponseWriter: rr}

	if _, err := tw.Write([]byte("ok")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	tw.WriteHeader(http.StatusNotFound)
	if rr.Code != http.StatusOK {
		t.Errorf("Status = %d, want implicit 200 to stick", rr.Code)
	}

	tw.mu.Lock()
	tw.timedOut = true
	tw.mu.Unlock()
	if _, err := tw.Write([]byte("late")); err != http.ErrHandlerTimeout {
		t.Errorf("Write after timeout error = %v, want ErrHandlerTimeout", err)
	}
	if body := rr.Body.String(); body != "ok" {
		t.Errorf("Body = %q, want %q", body, "ok")
	}
}

func TestTimeoutDropsLateWrites(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan error, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		<-release
		_, err := w.Write([]byte("late"))
		finished <- err
	})

	rr := httptest.NewRecorder()
	Timeout(20*time.Millisecond)(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
	close(release)

	if err := <-finished; err != http.ErrHandlerTimeout {
		t.Errorf("late Write error = %v, want ErrHandlerTimeout", err)
	}
	if body := rr.Body.String(); body != "Request timeout" {
		t.Errorf("Body = %q, want %q", body, "Request timeout")
	}
}

func TestTimeoutPropagatesPanic(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	defer func() {
		if p := recover(); p != "boom" {
			t.Errorf("recovered %v, want boom", p)
		}
	}()
	Timeout(time.Second)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
