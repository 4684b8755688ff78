package classifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docdesk/internal/services"
)

const correlation = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

func TestClassifyPostsPDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/api/v1/classify/"+correlation {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/pdf" {
			t.Fatalf("content type = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Fatalf("accept = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "%PDF-1.4 test" {
			t.Fatalf("unexpected body %q", body)
		}
		_, _ = io.WriteString(w, `{"kind":"invoice","doc_date_parsed":"2024-03-01",
			"doc_id":{"value":"INV-1","score":0.92},
			"doc_date_sic":{"value":"01.03.2024","score":0.81},
			"doc_subject":{"value":"Hosting","score":0.77}}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIBase: server.URL + "/api/v1/"})
	result, err := client.Classify(context.Background(), correlation, strings.NewReader("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Kind != "invoice" || result.DocDateParsed != "2024-03-01" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.DocID == nil || result.DocID.Value != "INV-1" || *result.DocID.Score != 0.92 {
		t.Fatalf("unexpected doc_id %+v", result.DocID)
	}
	if client.APIBase() != server.URL+"/api/v1" {
		t.Fatalf("api base not normalized: %s", client.APIBase())
	}
}

func TestClassifyHTTPErrorIsFolded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, strings.Repeat("x", 10_000))
	}))
	defer server.Close()

	client := NewClient(Config{APIBase: server.URL})
	_, err := client.Classify(context.Background(), correlation, strings.NewReader("%PDF-"))
	if !errors.Is(err, services.ErrUpstreamHTTP) {
		t.Fatalf("expected ErrUpstreamHTTP, got %v", err)
	}
	folded := Fold(err)
	if folded.Code != services.CodeUpstreamHTTP {
		t.Fatalf("code = %q", folded.Code)
	}
	if folded.Status != http.StatusServiceUnavailable || folded.StatusText != "Service Unavailable" {
		t.Fatalf("unexpected status %d %q", folded.Status, folded.StatusText)
	}
	if len(folded.Body) != 4096 {
		t.Fatalf("body length = %d, want 4096", len(folded.Body))
	}
}

func TestClassifyUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := server.URL
	server.Close()

	client := NewClient(Config{APIBase: base, TimeoutSeconds: 1})
	_, err := client.Classify(context.Background(), correlation, strings.NewReader("%PDF-"))
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if Fold(err).Code != services.CodeUpstreamUnavailable {
		t.Fatalf("unexpected folded code %q", Fold(err).Code)
	}
}

func TestClassifyBadResponse(t *testing.T) {
	cases := map[string]string{
		"not json":        "<html>oops</html>",
		"array":           `[1,2,3]`,
		"score too large": `{"doc_id":{"value":"A","score":1.4}}`,
		"negative score":  `{"doc_subject":{"value":"A","score":-0.1}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, payload)
			}))
			defer server.Close()

			client := NewClient(Config{APIBase: server.URL})
			_, err := client.Classify(context.Background(), correlation, strings.NewReader("%PDF-"))
			if !errors.Is(err, services.ErrBadUpstreamResponse) {
				t.Fatalf("expected ErrBadUpstreamResponse, got %v", err)
			}
		})
	}
}

func TestClassifyRequiresCorrelationID(t *testing.T) {
	client := NewClient(Config{APIBase: "http://127.0.0.1:1"})
	_, err := client.Classify(context.Background(), "  ", strings.NewReader(""))
	if !errors.Is(err, services.ErrInvalidFilename) {
		t.Fatalf("expected ErrInvalidFilename, got %v", err)
	}
}

func TestWithHTTPClientIsUsed(t *testing.T) {
	var called bool
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"kind":"letter"}`)),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})
	client := NewClient(Config{APIBase: "http://classifier.invalid"}, WithHTTPClient(&http.Client{Transport: transport}))
	result, err := client.Classify(context.Background(), correlation, strings.NewReader("%PDF-"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if !called || result.Kind != "letter" {
		t.Fatalf("custom client not used: called=%v result=%+v", called, result)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
