// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	helloContent = "hello world\n"
	helloMD5     = "6f5902ac237024bdd0c176cb93063dc4"
	helloSHA256  = "a948904f2f0f479b8f8197694b30184b0d2ed1c1cd2a1ec0fb85d299a192a447"
)

func writeTempFile(t *testing.T, content string) string {
	filePath := path.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	return filePath
}

func TestValidateChecksum(t *testing.T) {
	t.Run("md5", func(t *testing.T) {
		require.NoError(t, ValidateChecksum(writeTempFile(t, helloContent), helloMD5))
	})
	t.Run("sha256", func(t *testing.T) {
		require.NoError(t, ValidateChecksum(writeTempFile(t, helloContent), helloSHA256))
	})
	t.Run("upper-case", func(t *testing.T) {
		require.NoError(t, ValidateChecksum(writeTempFile(t, helloContent), "6F5902AC237024BDD0C176CB93063DC4"))
	})
	t.Run("mismatch removes file", func(t *testing.T) {
		filePath := writeTempFile(t, "something else")
		require.Error(t, ValidateChecksum(filePath, helloMD5))
		_, err := os.Stat(filePath)
		require.True(t, os.IsNotExist(err), "file with the wrong checksum should have been removed")
	})
	t.Run("invalid checksum", func(t *testing.T) {
		filePath := writeTempFile(t, helloContent)
		require.Error(t, ValidateChecksum(filePath, "1234"))
		_, err := os.Stat(filePath)
		require.NoError(t, err, "file should not be removed if checksum is malformed")
	})
}

func TestDownloadIfMissing(t *testing.T) {
	var numRequests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		numRequests++
		_, _ = w.Write([]byte(helloContent))
	}))
	defer server.Close()

	filePath := path.Join(t.TempDir(), "subdir", "hello.txt")
	require.NoError(t, DownloadIfMissing(server.URL, filePath, helloSHA256))
	got, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, helloContent, string(got))

	// Second time the file is already there.
	require.NoError(t, DownloadIfMissing(server.URL, filePath, helloSHA256))
	assert.Equal(t, 1, numRequests)
}

func TestDownloadNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	_, err := Download(server.URL, path.Join(t.TempDir(), "missing.txt"), false)
	require.Error(t, err)
}

func TestCopyWithProgressBar(t *testing.T) {
	content := bytes.Repeat([]byte{7}, 3*1024*1024+17)
	var dst bytes.Buffer
	n, err := CopyWithProgressBar(&dst, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, content, dst.Bytes())
}
