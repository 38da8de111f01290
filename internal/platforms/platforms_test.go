package platforms_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"radar/internal/platforms"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaPlatform_Generate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"qwen2.5","response":"{\"is_relevant\":true}","done":true}`+"\n")
	}))
	defer srv.Close()

	p, err := platforms.NewOllamaPlatform(srv.URL, "qwen2.5", 0)
	require.NoError(t, err)

	reply, err := p.Generate(context.Background(), "be terse", "is this relevant?")
	require.NoError(t, err)
	assert.Equal(t, `{"is_relevant":true}`, reply)
	assert.Equal(t, "qwen2.5", got["model"])
	assert.Equal(t, "be terse", got["system"])
	assert.Equal(t, "json", got["format"])
}

func TestOllamaPlatform_RequiresModel(t *testing.T) {
	_, err := platforms.NewOllamaPlatform("http://localhost:11434", "", 0)
	assert.Error(t, err)
}

func TestOpenAIPlatform_RequiresModel(t *testing.T) {
	_, err := platforms.NewOpenAIPlatform("", "", "token", 0)
	assert.Error(t, err)
}
