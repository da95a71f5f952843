package main

import (
	"bytes"
	"crypto/aes"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattchengg/susgo/internal/crypt"
	"github.com/mattchengg/susgo/internal/firmware"
)

const (
	// testEncNonce decrypts to "GVBZcL7hnRNDjtpq".
	testEncNonce = "op+g6mNW5FRfKyOAC3Jd/RJytJcjTr3qaz8msaYzbjk="

	dlModel   = "SM-G998B"
	dlRegion  = "EUX"
	dlVersion = "G998BXXU5CVDD/G998BOXM5CVDD/G998BXXU5CVDD"
	dlLatest  = "G998BXXU5CVDD/G998BOXM5CVDD/G998BXXU5CVDD/G998BXXU5CVDD"
	dlLogic   = "Kp3xWq9ZrT2mLb7N"
)

// fusServer plays the nonce handshake, binary inform and the binary download.
type fusServer struct {
	t    *testing.T
	name string
	ct   []byte

	mu        sync.Mutex
	md5Hdr    string
	truncate  int
	ranges    []string
	downloads int
}

func (f *fusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("NONCE", testEncNonce)
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "sess-1"})

	switch r.URL.Path {
	case "/NF_DownloadGenerateNonce.do", "/NF_DownloadBinaryInitForMass.do":
	case "/NF_DownloadBinaryInform.do":
		fmt.Fprintf(w, `<FUSMsg><FUSBody>
<Results><Status>200</Status><LATEST_FW_VERSION><Data>%s</Data></LATEST_FW_VERSION></Results>
<Put>
<LOGIC_VALUE_FACTORY><Data>%s</Data></LOGIC_VALUE_FACTORY>
<BINARY_NAME><Data>%s</Data></BINARY_NAME>
<BINARY_BYTE_SIZE><Data>%d</Data></BINARY_BYTE_SIZE>
<MODEL_PATH><Data>/neofus/1/</Data></MODEL_PATH>
</Put></FUSBody></FUSMsg>`, dlLatest, dlLogic, f.name, len(f.ct))
	case "/NF_DownloadBinaryForMass.do":
		assert.Equal(f.t, "/neofus/1/"+f.name, r.URL.Query().Get("file"))
		f.mu.Lock()
		defer f.mu.Unlock()
		f.downloads++
		rng := r.Header.Get("Range")
		f.ranges = append(f.ranges, rng)

		if f.md5Hdr != "" {
			w.Header().Set("Content-MD5", f.md5Hdr)
		}
		var start int
		if rng != "" {
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"))
			if !assert.NoError(f.t, err) {
				http.Error(w, "bad range", http.StatusRequestedRangeNotSatisfiable)
				return
			}
			start = n
			w.WriteHeader(http.StatusPartialContent)
		}
		w.Write(f.ct[start : len(f.ct)-f.truncate])
	default:
		http.Error(w, "no such endpoint", http.StatusNotFound)
	}
}

func (f *fusServer) serve(md5Hdr string, truncate int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.md5Hdr, f.truncate = md5Hdr, truncate
}

func (f *fusServer) requests() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads, append([]string(nil), f.ranges...)
}

// encryptECB pads plain with PKCS#7 and encrypts it block by block.
func encryptECB(t *testing.T, key, plain []byte) []byte {
	t.Helper()
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte(nil), plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	ct := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(ct[i:], padded[i:])
	}
	return ct
}

type downloadEnv struct {
	srv   *fusServer
	dir   string
	cfg   string
	plain []byte
}

func (e *downloadEnv) enc() string { return filepath.Join(e.dir, e.srv.name) }
func (e *downloadEnv) dec() string { return crypt.DecryptedName(e.enc()) }

func (e *downloadEnv) run(t *testing.T, extra ...string) (string, error) {
	t.Helper()
	args := []string{"--config", e.cfg, "-m", dlModel, "-r", dlRegion, "-s", "R5CR1234ABC",
		"download", "-v", dlVersion, "-O", e.dir}
	return run(t, append(args, extra...)...)
}

func newDownloadEnv(t *testing.T, name string) *downloadEnv {
	t.Helper()
	var key []byte
	switch crypt.EncVersionOf(name) {
	case crypt.V2:
		key = crypt.V2Key(dlVersion, dlModel, dlRegion)
	default:
		sum := md5.Sum([]byte(firmware.LogicCheck(dlLatest, dlLogic)))
		key = sum[:]
	}
	plain := bytes.Repeat([]byte("firmware payload "), 700)

	fs := &fusServer{t: t, name: name, ct: encryptECB(t, key, plain)}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("fusUrl: "+srv.URL+"\ndownloadUrl: "+srv.URL+"\n"), 0o644))

	return &downloadEnv{srv: fs, dir: dir, cfg: cfg, plain: plain}
}

func md5Header(b []byte) string {
	sum := md5.Sum(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func TestDownloadVerifiesAndDecrypts(t *testing.T) {
	e := newDownloadEnv(t, "fw.zip.enc2")
	e.srv.serve(md5Header(e.srv.ct), 0)

	out, err := e.run(t, "-M")
	require.NoError(t, err)
	assert.Contains(t, out, "Download completed.")
	assert.Contains(t, out, "has been decrypted.")
	_, ranges := e.srv.requests()
	assert.Equal(t, []string{""}, ranges)

	got, err := os.ReadFile(e.dec())
	require.NoError(t, err)
	assert.Equal(t, e.plain, got)
	assert.NoFileExists(t, e.enc())
}

func TestDownloadV4(t *testing.T) {
	e := newDownloadEnv(t, "fw.zip.enc4")

	_, err := e.run(t)
	require.NoError(t, err)

	got, err := os.ReadFile(e.dec())
	require.NoError(t, err)
	assert.Equal(t, e.plain, got)
	assert.NoFileExists(t, e.enc())
}

func TestDownloadResumes(t *testing.T) {
	e := newDownloadEnv(t, "fw.zip.enc2")
	require.NoError(t, os.WriteFile(e.enc(), e.srv.ct[:100], 0o644))

	_, err := e.run(t)
	require.NoError(t, err)
	_, ranges := e.srv.requests()
	assert.Equal(t, []string{"bytes=100-"}, ranges)

	got, err := os.ReadFile(e.dec())
	require.NoError(t, err)
	assert.Equal(t, e.plain, got)
}

func TestDownloadKeepsEncrypted(t *testing.T) {
	e := newDownloadEnv(t, "fw.zip.enc2")

	_, err := e.run(t, "--no-decrypt")
	require.NoError(t, err)

	got, err := os.ReadFile(e.enc())
	require.NoError(t, err)
	assert.Equal(t, e.srv.ct, got)
	assert.NoFileExists(t, e.dec())
}

func TestDownloadMD5Mismatch(t *testing.T) {
	e := newDownloadEnv(t, "fw.zip.enc2")
	e.srv.serve(md5Header([]byte("something else")), 0)

	_, err := e.run(t, "-M")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "md5 mismatch")
	assert.NoFileExists(t, e.dec())
}

func TestDownloadMalformedMD5IsSkipped(t *testing.T) {
	for _, hdr := range []string{"not base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		t.Run(hdr, func(t *testing.T) {
			e := newDownloadEnv(t, "fw.zip.enc2")
			e.srv.serve(hdr, 0)

			_, err := e.run(t, "-M")
			require.NoError(t, err)
			got, err := os.ReadFile(e.dec())
			require.NoError(t, err)
			assert.Equal(t, e.plain, got)
		})
	}
}

func TestDownloadShortBody(t *testing.T) {
	e := newDownloadEnv(t, "fw.zip.enc2")
	e.srv.serve("", 32)

	_, err := e.run(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run again to resume")

	st, err := os.Stat(e.enc())
	require.NoError(t, err)
	assert.Equal(t, int64(len(e.srv.ct)-32), st.Size())
	assert.NoFileExists(t, e.dec())
}

func TestDownloadRefusesOversizedFile(t *testing.T) {
	e := newDownloadEnv(t, "fw.zip.enc2")
	require.NoError(t, os.WriteFile(e.enc(), make([]byte, len(e.srv.ct)+16), 0o644))

	_, err := e.run(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "larger than")
	n, _ := e.srv.requests()
	assert.Zero(t, n)
}

func TestDownloadAlreadyDecrypted(t *testing.T) {
	e := newDownloadEnv(t, "fw.zip.enc2")
	require.NoError(t, os.WriteFile(e.dec(), []byte("done"), 0o644))

	out, err := e.run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "File already downloaded and decrypted!")
	n, _ := e.srv.requests()
	assert.Zero(t, n)

	got, err := os.ReadFile(e.dec())
	require.NoError(t, err)
	assert.Equal(t, []byte("done"), got)
}

func TestDownloadAlreadyDownloaded(t *testing.T) {
	e := newDownloadEnv(t, "fw.zip.enc2")
	require.NoError(t, os.WriteFile(e.enc(), e.srv.ct, 0o644))

	out, err := e.run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Already downloaded!")
	n, _ := e.srv.requests()
	assert.Zero(t, n)

	got, err := os.ReadFile(e.dec())
	require.NoError(t, err)
	assert.Equal(t, e.plain, got)
	assert.NoFileExists(t, e.enc())
}

func TestParseContentMD5(t *testing.T) {
	sum := md5.Sum([]byte("payload"))
	got, err := parseContentMD5(base64.StdEncoding.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.Equal(t, sum[:], got)

	_, err = parseContentMD5("%%%")
	assert.Error(t, err)
	_, err = parseContentMD5(base64.StdEncoding.EncodeToString([]byte("abc")))
	assert.Error(t, err)
}
