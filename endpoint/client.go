// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"code.hybscloud.com/rft/connengine"
	"code.hybscloud.com/rft/fsstore"
	"code.hybscloud.com/rft/lossoracle"
	"code.hybscloud.com/rft/streamhandler"
	"code.hybscloud.com/rft/transport"
	"code.hybscloud.com/rft/wire"
)

// helloTimeout bounds how long the client waits for the server's first
// reply (carrying the server-assigned connection_id) before giving up.
const helloTimeout = 5 * time.Second

// Client drives a single connection to one server: it performs the
// connection_id handshake, then fetches a batch of remote files by
// pre-seeding a local write-to-self stream handler for each before asking
// the server to Read it.
type Client struct {
	conn   transport.Conn
	server net.Addr
	store  fsstore.Store
	loss   *lossoracle.Oracle

	log *logrus.Entry

	mu       sync.Mutex
	engine   *connengine.Engine
	connID   uint32
	gotHello chan struct{}
	helloOne sync.Once

	nextStreamID uint32
}

// NewClient returns a Client that will dial server over conn, storing
// fetched files via store. loss may be nil to disable simulated loss.
func NewClient(conn transport.Conn, server net.Addr, store fsstore.Store, loss *lossoracle.Oracle) *Client {
	return &Client{
		conn:     conn,
		server:   server,
		store:    store,
		loss:     loss,
		log:      logrus.WithField("role", "client"),
		gotHello: make(chan struct{}),
	}
}

// Open performs the connection_id handshake with the server: it sends a
// packet carrying an Ack(0) frame addressed to connection_id 0 and blocks
// until the server's reply reveals the id it assigned.
func (c *Client) Open() error {
	c.mu.Lock()
	c.engine = connengine.NewEngine(0, func(b []byte) error {
		if c.loss != nil && c.loss.Next() {
			return nil
		}
		return c.conn.SendTo(c.server, b)
	}, func(streamID uint16, in <-chan wire.Frame, out chan<- wire.Frame, acks chan<- streamhandler.AckHint) connengine.StreamRunner {
		return streamhandler.New(streamID, c.store, in, out, acks)
	})
	c.mu.Unlock()

	go c.engine.Run()
	go c.recvLoop()

	// Submitting through the engine (rather than assembling a packet by
	// hand) keeps this opening frame inside the TX task's own packet_id
	// sequence, so the server's reply acks the sequence the engine itself
	// is tracking.
	c.engine.SubmitFrame(wire.NewAckFrame(0))

	select {
	case <-c.gotHello:
		return nil
	case <-time.After(helloTimeout):
		return fmt.Errorf("no response from server within %s", helloTimeout)
	}
}

// recvLoop demultiplexes inbound datagrams into the client's single
// engine, recording the server-assigned connection_id on first contact.
func (c *Client) recvLoop() {
	for {
		dg, err := c.conn.ReceiveFrom()
		if err != nil {
			return
		}
		if c.loss != nil && c.loss.Next() {
			continue
		}
		p, err := wire.ParsePacket(dg.Payload)
		if err != nil {
			c.log.Warnf("dropping malformed packet from %s: %v", dg.From, err)
			continue
		}

		// Deliver first so the connection_id rewrite it carries (via
		// ConnIdChange) has already landed in the engine by the time Open
		// unblocks below.
		c.engine.Deliver(p)

		c.helloOne.Do(func() {
			c.mu.Lock()
			c.connID = p.ConnectionID
			c.mu.Unlock()
			close(c.gotHello)
		})
	}
}

// FetchFile requests remotePath from the server and saves it locally as
// localPath: it pre-seeds a local Write-to-self handler via
// Engine.OpenLocalStream, then submits a Read command for remotePath over
// the same stream_id so the server's Data frames land directly in the
// handler already waiting for them. The returned channel receives the
// transfer's terminal result (nil on success) exactly once, when the
// local write-to-self handler completes; callers must wait on it before
// tearing down the connection, or the fetch races the teardown.
func (c *Client) FetchFile(remotePath, localPath string) <-chan error {
	streamID := uint16(atomic.AddUint32(&c.nextStreamID, 1))

	writeCmd := wire.NewWriteFrame(streamID, localPath, 0, 0)
	done := c.engine.OpenLocalStream(streamID, writeCmd)

	readCmd := wire.NewReadFrame(streamID, remotePath, 0, 0)
	c.engine.SubmitFrame(readCmd)
	return done
}

// Close tears down the client's connection.
func (c *Client) Close() {
	c.mu.Lock()
	e := c.engine
	c.mu.Unlock()
	if e != nil {
		e.SubmitFrame(wire.NewExitFrame())
		e.Close()
	}
}
