package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"time"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"

	requestPrintURL = "CAPTURE URL\n"
	requestCopyURL  = "CAPTURE COPY\n"
)

type tcpServer struct {
	lis      net.Listener
	incoming chan *tcpConn
	port     int
}

func newTCPServer() Server { return &tcpServer{incoming: make(chan *tcpConn, 8)} }

// Start binds only the first port of the range. A bind failure means another
// resident already owns it.
func (s *tcpServer) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	start, _ := portRange()
	addr := fmt.Sprintf("%s:%d", residentHost, start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("singleinstance: failed to bind %s: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = start
	log.Printf("singleinstance: listening on %s", addr)
	go s.acceptLoop(ctx)
	return nil
}

func (s *tcpServer) Port() int { return s.port }

func (s *tcpServer) acceptLoop(ctx context.Context) {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			return
		}
		remote := c.RemoteAddr().String()
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		br := bufio.NewReader(c)
		line, _ := br.ReadString('\n')
		bw := bufio.NewWriter(c)
		if line == pingRequest {
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
			continue
		}
		if line != requestPrintURL && line != requestCopyURL {
			log.Printf("singleinstance: unknown request from %s: %q", remote, line)
			_ = c.Close()
			continue
		}
		// The capture cycle that serves this request has no fixed
		// duration, so the handshake deadline comes off now.
		_ = c.SetDeadline(time.Time{})
		req := Request{PrintURL: line == requestPrintURL}
		log.Printf("singleinstance: capture request from %s printURL=%v", remote, req.PrintURL)
		select {
		case s.incoming <- &tcpConn{c: c, req: req, w: bw}:
		case <-ctx.Done():
			_ = c.Close()
			return
		}
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	if s.lis != nil {
		_ = s.lis.Close()
		s.lis = nil
	}
	close(s.incoming)
	return nil
}

type tcpConn struct {
	c   net.Conn
	req Request
	w   *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.req }

func (tc *tcpConn) RespondSuccess(url string) error {
	if _, err := tc.w.WriteString("OK\n" + url); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString("ERR\n" + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
