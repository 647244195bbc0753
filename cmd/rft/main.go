// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command rft is the reliable-file-transfer endpoint: run with -s to serve
// files out of a directory, or with a host and a list of files to fetch
// them from a running server.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"code.hybscloud.com/rft/endpoint"
	"code.hybscloud.com/rft/fsstore"
	"code.hybscloud.com/rft/lossoracle"
	"code.hybscloud.com/rft/transport"
)

func main() {
	var (
		server  bool
		port    uint
		dropP   float64
		dropQ   float64
		havePFl bool
		haveQFl bool
		root    string
	)

	flag.BoolVar(&server, "s", false, "run as server")
	flag.BoolVar(&server, "server", false, "run as server")
	flag.UintVar(&port, "t", 8080, "port")
	flag.UintVar(&port, "port", 8080, "port")
	flag.Float64Var(&dropP, "p", 0, "Markov P(drop|previous not dropped)")
	flag.Float64Var(&dropQ, "q", 0, "Markov P(drop|previous dropped)")
	flag.StringVar(&root, "root", ".", "server: directory served/written to")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			havePFl = true
		case "q":
			haveQFl = true
		}
	})
	if havePFl && !haveQFl {
		dropQ = dropP
	} else if haveQFl && !havePFl {
		dropP = dropQ
	}

	var loss *lossoracle.Oracle
	if dropP != 0 || dropQ != 0 {
		loss = lossoracle.New(dropP, dropQ)
	}

	store := fsstore.NewLocal(root)

	if server {
		runServer(int(port), store, loss)
		return
	}

	args := flag.Args()
	if len(args) < 2 {
		logrus.Fatal("usage: rft <host> <file>...")
	}
	runClient(args[0], int(port), args[1:], store, loss)
}

func runServer(port int, store fsstore.Store, loss *lossoracle.Oracle) {
	conn, err := transport.ListenUDP(port)
	if err != nil {
		logrus.Fatalf("bind udp: %v", err)
	}
	defer conn.Close()

	srv := endpoint.NewServer(conn, store, loss)
	logrus.Infof("serving on udp :%d", port)
	if err := srv.Run(); err != nil {
		logrus.Fatalf("server: %v", err)
	}
}

func runClient(host string, port int, files []string, store fsstore.Store, loss *lossoracle.Oracle) {
	conn, err := transport.ListenUDP(0)
	if err != nil {
		logrus.Fatalf("bind udp: %v", err)
	}
	defer conn.Close()

	serverAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		logrus.Fatalf("resolve %s:%d: %v", host, port, err)
	}
	c := endpoint.NewClient(conn, serverAddr, store, loss)

	if err := c.Open(); err != nil {
		logrus.Fatalf("open connection to %s:%d: %v", host, port, err)
	}
	defer c.Close()

	type pending struct {
		path string
		done <-chan error
	}

	requests := make([]pending, 0, len(files))
	for _, path := range files {
		local := filepath.Base(path)
		requests = append(requests, pending{path: path, done: c.FetchFile(path, local)})
		logrus.Infof("requested %q -> %q", path, local)
	}

	// Wait for every fetch to reach a terminal state before Close submits
	// the Exit frame and tears down the engine; otherwise teardown races
	// the in-flight Read/Write transfers.
	failed := 0
	for _, req := range requests {
		if err := <-req.done; err != nil {
			logrus.Errorf("fetch %q: %v", req.path, err)
			failed++
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failed, len(files))
		os.Exit(1)
	}
}
