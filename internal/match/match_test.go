package match

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"enrich/internal/catalog"
	"enrich/internal/frame"
)

func candidates(titles ...string) []catalog.Record {
	out := make([]catalog.Record, len(titles))
	for i, t := range titles {
		out[i] = catalog.Record{Title: t, TopTenCols: "  Ort\n0  Bonn"}
	}
	return out
}

func userFrame() *frame.Frame {
	return &frame.Frame{
		Columns: []string{"Ort", "Wert"},
		Rows:    [][]string{{"Köln", "1"}},
		Types:   []string{"text", "integer"},
	}
}

func TestParseReply(t *testing.T) {
	t.Parallel()

	cands := candidates("Erster", "Zweiter", "Dritter")

	cases := []struct {
		name    string
		reply   string
		want    Suggestion
		wantErr error
	}{
		{
			name:  "well formed",
			reply: "Dataset: 2, columns to join: Ort - Stadt",
			want:  Suggestion{Index: 2, RecordTitle: "Zweiter", UserColumn: "Ort", CatalogColumn: "Stadt"},
		},
		{
			name:  "embedded in prose",
			reply: "I think the answer is Dataset: 1, columns to join: Ort - Ort. Good luck!",
			want:  Suggestion{Index: 1, RecordTitle: "Erster", UserColumn: "Ort", CatalogColumn: "Ort"},
		},
		{name: "declined", reply: "0", wantErr: ErrNoMatch},
		{name: "garbage", reply: "no idea, sorry", wantErr: ErrNoMatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseReply(tc.reply, cands)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseReply: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

// TestParseReply_IndexOutOfRange verifies a reply pointing past the shown
// candidates is surfaced as a protocol error, not as "no match".
func TestParseReply_IndexOutOfRange(t *testing.T) {
	t.Parallel()

	_, err := parseReply("Dataset: 5, columns to join: a - b", candidates("Einziger"))
	var merr *Error
	if !errors.As(err, &merr) {
		t.Fatalf("err = %v, want *Error", err)
	}
}

// TestBuildPrompts verifies the split between the two request halves: the
// system instruction carries at most six candidate previews, the user
// message carries the dataset head, and neither leaks into the other.
func TestBuildPrompts(t *testing.T) {
	t.Parallel()

	cands := candidates("A", "B", "C", "D", "E", "F", "G", "H")
	system := buildSystemPrompt(cands)
	user := buildUserPrompt(userFrame())

	if !strings.Contains(system, "Dataset 6:") {
		t.Error("system prompt misses Dataset 6")
	}
	if strings.Contains(system, "Dataset 7:") {
		t.Error("system prompt includes Dataset 7, want at most 6 candidates")
	}
	if !strings.Contains(user, "Köln") {
		t.Error("user prompt misses dataset head")
	}
	if strings.Contains(system, "Köln") {
		t.Error("user data leaked into the system prompt")
	}
	if strings.Contains(user, "Dataset 1:") {
		t.Error("catalog previews leaked into the user prompt")
	}
}

func TestStatic(t *testing.T) {
	t.Parallel()

	cands := candidates("Erster", "Zweiter")

	got, err := Static{Index: 2, UserColumn: "Ort", CatalogColumn: "Ort"}.Suggest(context.Background(), userFrame(), cands)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got.RecordTitle != "Zweiter" {
		t.Errorf("RecordTitle = %q, want Zweiter", got.RecordTitle)
	}

	if _, err := (Static{}).Suggest(context.Background(), userFrame(), cands); !errors.Is(err, ErrNoMatch) {
		t.Errorf("zero Static err = %v, want ErrNoMatch", err)
	}
}

// TestOpenAI_EndToEnd drives the chat-completion suggester against a local
// fake endpoint and checks both request shape and reply parsing.
func TestOpenAI_EndToEnd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("messages = %d, want system + user pair", len(req.Messages))
			http.Error(w, "bad request shape", http.StatusBadRequest)
			return
		}
		if req.Messages[0].Role != "system" || !strings.Contains(req.Messages[0].Content, "Dataset 1:") {
			t.Errorf("system message = %+v", req.Messages[0])
		}
		if req.Messages[1].Role != "user" || !strings.Contains(req.Messages[1].Content, "User dataset:") {
			t.Errorf("user message = %+v", req.Messages[1])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "Dataset: 1, columns to join: Ort - Ort"}},
			},
		})
	}))
	defer srv.Close()

	s := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL})
	got, err := s.Suggest(context.Background(), userFrame(), candidates("Radverkehr"))
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	want := Suggestion{Index: 1, RecordTitle: "Radverkehr", UserColumn: "Ort", CatalogColumn: "Ort"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// TestOpenAI_BackendFailure verifies HTTP failures surface as *Error, not
// as ErrNoMatch.
func TestOpenAI_BackendFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewOpenAI(OpenAIConfig{BaseURL: srv.URL})
	_, err := s.Suggest(context.Background(), userFrame(), candidates("X"))
	var merr *Error
	if !errors.As(err, &merr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if errors.Is(err, ErrNoMatch) {
		t.Error("backend failure must not look like a clean no-match")
	}
}
