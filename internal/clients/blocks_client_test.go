package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	herrors "github.com/adverant/nexus/ocr-highlight-worker/internal/errors"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
)

func TestBlocksClient_FetchBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/organizations/org-1/documents/doc-1/ocr-blocks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"blocks":[
			{"id":"l1","blockType":"LINE","confidence":98.1,"text":"Total due",
			 "geometry":{"boundingBox":{"width":0.4,"height":0.03,"left":0.1,"top":0.2},"polygon":[]},"page":1},
			{"id":"w1","blockType":"WORD","confidence":97.4,"text":"Total",
			 "geometry":{"boundingBox":{"width":0.1,"height":0.03,"left":0.1,"top":0.2},"polygon":[]},
			 "relationships":[],"page":1}
		]}}`))
	}))
	defer server.Close()

	client := NewBlocksClient(server.URL, "secret", time.Second)
	blocks, err := client.FetchBlocks(context.Background(), "org-1", "doc-1")
	if err != nil {
		t.Fatalf("FetchBlocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].BlockType != ocr.BlockTypeLine || blocks[1].Text != "Total" {
		t.Errorf("unexpected blocks %+v", blocks)
	}
	if blocks[1].Geometry.BoundingBox.Width != 0.1 {
		t.Errorf("geometry not decoded: %+v", blocks[1].Geometry)
	}
}

func TestBlocksClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode herrors.ErrorCode
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, herrors.ErrorAPICallFailed},
		{"not found", http.StatusNotFound, `not found`, herrors.ErrorAPICallFailed},
		{"malformed body", http.StatusOK, `{"success":true,"data":`, herrors.ErrorBlockDecodeFailed},
		{"unknown block type", http.StatusOK, `{"success":true,"data":{"blocks":[{"id":"x","blockType":"CELL"}]}}`, herrors.ErrorBlockDecodeFailed},
		{"box off the page", http.StatusOK, `{"success":true,"data":{"blocks":[{"id":"w1","blockType":"WORD","text":"x",
			"geometry":{"boundingBox":{"width":0.2,"height":0.1,"left":0.9,"top":0.1}},"page":1}]}}`, herrors.ErrorBlockDecodeFailed},
		{"reported failure", http.StatusOK, `{"success":false,"error":"document has no OCR"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewBlocksClient(server.URL, "", time.Second).FetchBlocks(context.Background(), "org", "doc")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantCode != "" && !herrors.HasCode(err, tt.wantCode) {
				t.Errorf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestBlocksClient_RequiresIDs(t *testing.T) {
	client := NewBlocksClient("http://127.0.0.1:0", "", time.Second)
	if _, err := client.FetchBlocks(context.Background(), "", "doc"); err == nil {
		t.Error("expected error for missing organization id")
	}
}

func TestBlocksClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewBlocksClient(server.URL, "", time.Second).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}
