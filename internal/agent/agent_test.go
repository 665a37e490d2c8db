package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestGeminiAnswer(t *testing.T) {
	t.Parallel()

	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/test-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("missing api key")
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotPrompt = req.Contents[0].Parts[0].Text
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Noah built the ark.  "}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(Config{GeminiAPIKey: "secret", GeminiModel: "test-model", GeminiBaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}

	answer, err := c.Answer(context.Background(), "Who built the ark?", "Noah built an ark.")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if answer != "Noah built the ark." {
		t.Errorf("answer = %q", answer)
	}
	if !strings.Contains(gotPrompt, "--- START OF LESSON CONTEXT ---\nNoah built an ark.") {
		t.Errorf("prompt missing lesson context: %q", gotPrompt)
	}
	if !strings.Contains(gotPrompt, `Question: "Who built the ark?"`) {
		t.Errorf("prompt missing question: %q", gotPrompt)
	}
}

func TestGeminiHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewGeminiClient(Config{GeminiAPIKey: "k", GeminiBaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}
	_, err = c.Answer(context.Background(), "q", "m")
	var httpErr *geminiHTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 error, got %v", err)
	}
}

func TestGeminiRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGeminiClient(Config{}, nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

type recordingAnswerer struct {
	material string
}

func (r *recordingAnswerer) Answer(_ context.Context, _, material string) (string, error) {
	r.material = material
	return "ok", nil
}

func TestServiceTruncatesMaterial(t *testing.T) {
	t.Parallel()

	rec := &recordingAnswerer{}
	svc := NewServiceWithAnswerer(rec, Config{MaxMaterial: 5})
	if _, err := svc.Answer(context.Background(), "q", "héllo world"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if rec.material != "héll" {
		t.Errorf("material = %q, want %q", rec.material, "héll")
	}
	if !svc.Available() {
		t.Error("service with a backend should be available")
	}
}

func TestServiceWithoutBackend(t *testing.T) {
	t.Parallel()

	svc := NewService(context.Background(), Config{}, nil)
	if svc.Available() {
		t.Error("expected unavailable service")
	}
	if _, err := svc.Answer(context.Background(), "q", "m"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGrpcClientAnswer(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		if method != answerMethod {
			t.Errorf("method = %s", method)
		}
		req := &structpb.Struct{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		q := req.GetFields()["question"].GetStringValue()
		resp, _ := structpb.NewStruct(map[string]any{"answer": "echo: " + q})
		return stream.SendMsg(resp)
	}))
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	client, err := NewGrpcClient(context.Background(), GrpcClientConfig{
		Address:        lis.Addr().String(),
		ConnectTimeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewGrpcClient failed: %v", err)
	}
	defer client.Close()

	answer, err := client.Answer(context.Background(), "why?", "because")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if answer != "echo: why?" {
		t.Errorf("answer = %q", answer)
	}
}
