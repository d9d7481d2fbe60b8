package modelclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestModelNameResolution(t *testing.T) {
	s := Settings{}
	if got := s.ModelName(PurposeChat); got != "qwen3:4b" {
		t.Fatalf("chat default = %q", got)
	}
	if got := s.ModelName(PurposeText2SQL); got != "sqlcoder7b" {
		t.Fatalf("text2sql default = %q", got)
	}

	s = Settings{Model: "shared", ChatModel: "chatty"}
	if got := s.ModelName(PurposeRouter); got != "chatty" {
		t.Fatalf("router should inherit chat model, got %q", got)
	}
	if got := s.ModelName(PurposeText2SQL); got != "shared" {
		t.Fatalf("text2sql should inherit shared model, got %q", got)
	}
	s.RouterModel = "tiny"
	if got := s.ModelName(PurposeRouter); got != "tiny" {
		t.Fatalf("router override = %q", got)
	}
}

func TestCandidatesPerProvider(t *testing.T) {
	cases := map[string][]string{
		"ollama": {ProviderOllama, ProviderOffline},
		"OpenAI": {ProviderOpenAI, ProviderOffline},
		"":       {ProviderOffline},
		"mock":   {ProviderOffline},
	}
	for provider, want := range cases {
		got := NewProvider(Settings{Provider: provider}, nil, nil).Candidates(PurposeChat)
		if len(got) != len(want) {
			t.Fatalf("%q: candidates = %d, want %d", provider, len(got), len(want))
		}
		for i := range want {
			if got[i].Provider != want[i] {
				t.Fatalf("%q: candidate[%d] = %q, want %q", provider, i, got[i].Provider, want[i])
			}
		}
	}
}

func TestProviderCachesClientPerPurpose(t *testing.T) {
	p := NewProvider(Settings{}, nil, nil)
	first, err := p.Client(PurposeChat)
	if err != nil {
		t.Fatalf("Client() error = %v", err)
	}
	second, _ := p.Client(PurposeChat)
	if first != second {
		t.Fatalf("expected cached client")
	}
	router, _ := p.Client(PurposeRouter)
	if router == first {
		t.Fatalf("purposes must not share a client")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("Authorization = %q", got)
		}
		var payload struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "gpt-test" || len(payload.Messages) != 2 {
			t.Fatalf("payload = %+v", payload)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hello  "}}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL + "/", APIKey: "secret", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	reply, err := client.Complete(context.Background(), []Message{System("sys"), User("hi")})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "hello" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestOpenAIClientErrors(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://x", Model: "m"}); err == nil {
		t.Fatalf("expected api key error")
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer server.Close()
	client, _ := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k", Model: "m"})
	if _, err := client.Complete(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "status=429") {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestOllamaClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		var payload ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Stream || payload.Model != "qwen3:4b" {
			t.Fatalf("payload = %+v", payload)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"route\":\"chat\"}"},"done":true}`))
	}))
	defer server.Close()

	client, err := NewOllamaClient(OllamaConfig{Endpoint: server.URL, Model: "qwen3:4b"})
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}
	reply, err := client.Complete(context.Background(), []Message{User("hi")})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != `{"route":"chat"}` {
		t.Fatalf("reply = %q", reply)
	}
}

func TestOfflineReply(t *testing.T) {
	cases := map[string]string{
		"我的年假还有几天": "年假余额",
		"查一下工资":    "薪资信息",
		"今天打卡了吗":   "考勤",
		"我要请假":     "请假类型",
		"研发部门有多少人": "哪个部门",
		"随便聊聊":     "AskHR",
	}
	for in, fragment := range cases {
		if got := OfflineReply(in); !strings.Contains(got, fragment) {
			t.Fatalf("OfflineReply(%q) = %q, want fragment %q", in, got, fragment)
		}
	}
}
