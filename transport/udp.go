// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import "net"

// UDPConn is a Conn backed by a real net.UDPConn. It binds
// 0.0.0.0:<port> for a server, or 0.0.0.0:0 for a client (port 0 asks the
// kernel to choose an ephemeral port).
type UDPConn struct {
	conn *net.UDPConn
}

// ListenUDP binds a UDPConn on 0.0.0.0:port.
func ListenUDP(port int) (*UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, err
	}
	return &UDPConn{conn: conn}, nil
}

func (u *UDPConn) SendTo(addr net.Addr, b []byte) error {
	_, err := u.conn.WriteTo(b, addr)
	return err
}

func (u *UDPConn) ReceiveFrom() (Datagram, error) {
	buf := make([]byte, MaxDatagramSize)
	n, from, err := u.conn.ReadFrom(buf)
	if err != nil {
		return Datagram{}, err
	}
	return Datagram{Payload: buf[:n], From: from}, nil
}

func (u *UDPConn) LocalAddr() net.Addr { return u.conn.LocalAddr() }

func (u *UDPConn) Close() error { return u.conn.Close() }

var _ Conn = (*UDPConn)(nil)
