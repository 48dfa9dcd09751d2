package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPlaceholder(t *testing.T) {
	out, err := Placeholder().Generate(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if out != PlaceholderOutput {
		t.Fatalf("out = %q, want %q", out, PlaceholderOutput)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Placeholder().Generate(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHTTPClientGenerate(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"DENY"}}]}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(Config{Endpoint: ts.URL + "/v1/", Name: "test-model", APIKey: "secret", RequestsPerSecond: 100}, ts.Client(), nil)
	out, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "DENY" {
		t.Fatalf("out = %q, want DENY", out)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotReq.Model != "test-model" || len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "hello" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestHTTPClientFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"no choices", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()
			c := NewHTTPClient(Config{Endpoint: ts.URL}, ts.Client(), nil)
			if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
				t.Fatalf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := NewHTTPClient(Config{Endpoint: ts.URL, Timeout: 50 * time.Millisecond}, ts.Client(), nil)
	start := time.Now()
	_, err := c.Generate(context.Background(), "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout was not enforced")
	}
}
