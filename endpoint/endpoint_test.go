// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/rft/endpoint"
	"code.hybscloud.com/rft/fsstore"
	"code.hybscloud.com/rft/transport"
)

func TestClientFetchesFileFromServer(t *testing.T) {
	serverRoot := t.TempDir()
	clientRoot := t.TempDir()

	const content = "Did you ever hear the Tragedy of Darth Plagueis the Wise?"
	require.NoError(t, os.WriteFile(filepath.Join(serverRoot, "secret.txt"), []byte(content), 0o644))

	hub := transport.NewMemHub()
	serverConn := hub.NewMemConn("server")
	clientConn := hub.NewMemConn("client")

	srv := endpoint.NewServer(serverConn, fsstore.NewLocal(serverRoot), nil)
	go srv.Run()

	cli := endpoint.NewClient(clientConn, serverConn.LocalAddr(), fsstore.NewLocal(clientRoot), nil)
	require.NoError(t, cli.Open())
	defer cli.Close()

	done := cli.FetchFile("secret.txt", "secret.txt")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("fetch did not complete in time")
	}

	got, err := os.ReadFile(filepath.Join(clientRoot, "secret.txt"))
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}
