package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct{}

func newTCPClient() Client { return &tcpClient{} }

func (c *tcpClient) Delegate(ctx context.Context, printURL bool) (bool, string, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	start, end := portRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, deadline) {
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, deadline)
		if err != nil {
			continue
		}
		w := bufio.NewWriter(conn)
		request := requestCopyURL
		if printURL {
			request = requestPrintURL
		}
		if _, err := w.WriteString(request); err != nil {
			conn.Close()
			return true, "", err
		}
		if err := w.Flush(); err != nil {
			conn.Close()
			return true, "", err
		}
		// The resident runs an interactive selection plus uploads; the
		// response arrives whenever the cycle finishes.
		br := bufio.NewReader(conn)
		status, err := br.ReadString('\n')
		if err != nil {
			conn.Close()
			return true, "", err
		}
		switch status {
		case "OK\n":
			b, _ := io.ReadAll(br)
			conn.Close()
			return true, string(b), nil
		case "ERR\n":
			msg, _ := io.ReadAll(br)
			conn.Close()
			return true, "", errors.New(string(msg))
		}
		conn.Close()
	}
	return false, "", nil
}
