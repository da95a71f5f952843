package fus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	t         *testing.T
	informReq []byte
	rangeHdr  string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "Kies2.0_FUS", r.Header.Get("User-Agent"))
	switch r.URL.Path {
	case "/NF_DownloadGenerateNonce.do":
		w.Header().Set("NONCE", testEncNonce)
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "sess-1"})
	case "/NF_DownloadBinaryInform.do":
		sig, _ := Signature(testNonce)
		assert.Contains(f.t, r.Header.Get("Authorization"), `signature="`+sig+`"`)
		cookie, err := r.Cookie("JSESSIONID")
		if assert.NoError(f.t, err) {
			assert.Equal(f.t, "sess-1", cookie.Value)
		}
		f.informReq, _ = io.ReadAll(r.Body)
		io.WriteString(w, informOK)
	case "/NF_DownloadBinaryInitForMass.do":
		w.WriteHeader(http.StatusOK)
	case "/NF_DownloadBinaryForMass.do":
		assert.Equal(f.t, "/neofus/9/file.enc4", r.URL.Query().Get("file"))
		assert.Contains(f.t, r.Header.Get("Authorization"), `nonce="`+testEncNonce+`"`)
		f.rangeHdr = r.Header.Get("Range")
		io.WriteString(w, "payload")
	default:
		http.Error(w, "no such endpoint", http.StatusNotFound)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	fs := &fakeServer{t: t}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), WithBaseURL(srv.URL), WithDownloadURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, fs
}

func TestNewClientHandshake(t *testing.T) {
	c, _ := newTestClient(t)
	assert.Equal(t, testNonce, c.Nonce())
	assert.Equal(t, "sess-1", c.sessID)
	assert.NotEmpty(t, c.auth)
}

func TestClientBinaryInform(t *testing.T) {
	c, fs := newTestClient(t)

	info, err := c.BinaryInform(context.Background(), InformRequest{
		Version: "G998BXXU5CVDD/G998BOXM5CVDD/G998BXXU5CVDD/G998BXXU5CVDD",
		Model:   "SM-G998B",
		Region:  "EUX",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, info.Status)
	assert.Equal(t, "Kp3xWq9ZrT2mLb7N", info.LogicValueFactory)
	assert.Contains(t, string(fs.informReq), "<DEVICE_MODEL_NAME><Data>SM-G998B</Data></DEVICE_MODEL_NAME>")
}

func TestClientDownloadFile(t *testing.T) {
	c, fs := newTestClient(t)
	require.NoError(t, c.BinaryInit(context.Background(), "file.enc4"))

	resp, err := c.DownloadFile(context.Background(), "/neofus/9/file.enc4", 1024)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, "bytes=1024-", fs.rangeHdr)
}

func TestClientStatusError(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.MakeReq(context.Background(), "missing.do", nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.True(t, strings.HasPrefix(se.Error(), "fus: missing.do: HTTP 404"))
}

func TestNewClientWithoutNonce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := NewClient(context.Background(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	assert.Error(t, err)
}
