package jsonrpc2

import (
	"bufio"
	"bytes"
	"io"
	"sync"
)

var _ Conn = &ioConn{}

// IOConn returns a Conn that exchanges newline-delimited frames over a byte
// stream, such as a TCP connection or a net.Pipe.
func IOConn(rwc io.ReadWriteCloser) Conn {
	return &ioConn{
		r:   bufio.NewReader(rwc),
		rwc: rwc,
	}
}

type ioConn struct {
	muRead  sync.Mutex
	muWrite sync.Mutex
	r       *bufio.Reader
	rwc     io.ReadWriteCloser
}

// ReadFrame returns the next non-empty line.
func (c *ioConn) ReadFrame() ([]byte, error) {
	c.muRead.Lock()
	defer c.muRead.Unlock()
	for {
		line, err := c.r.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Send writes the frame followed by a newline. Encoded JSON never contains a
// raw newline, so frames stay intact.
func (c *ioConn) Send(frame []byte) error {
	c.muWrite.Lock()
	defer c.muWrite.Unlock()
	buf := make([]byte, 0, len(frame)+1)
	buf = append(append(buf, frame...), '\n')
	_, err := c.rwc.Write(buf)
	return err
}

func (c *ioConn) Close() error {
	return c.rwc.Close()
}
