package pinning_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"carelink/backend/internal/apperr"
	"carelink/backend/internal/pinning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestPinFile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("pinata_api_key"))
		assert.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		var meta map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("pinataMetadata")), &meta))
		assert.Equal(t, "report.pdf", meta["name"])

		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.4", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"IpfsHash":"QmHash","PinSize":8,"Timestamp":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := pinning.NewClient(srv.URL, "key", "secret", "https://gateway.example/ipfs")
	pin, err := c.PinFile(context.Background(), writeTemp(t, "%PDF-1.4"), "report.pdf")
	require.NoError(t, err)

	assert.Equal(t, "QmHash", pin.Hash)
	assert.Equal(t, "https://gateway.example/ipfs/QmHash", pin.URL)
}

func TestPinFile_UpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := pinning.NewClient(srv.URL, "bad", "bad", "https://gateway.example/ipfs/")
	_, err := c.PinFile(context.Background(), writeTemp(t, "x"), "x.txt")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Equal(t, "Failed to upload file to IPFS", apperr.Message(err))
	assert.Contains(t, err.Error(), "401")

	_, err = c.PinFile(context.Background(), filepath.Join(t.TempDir(), "missing"), "x")
	assert.Error(t, err)
}
