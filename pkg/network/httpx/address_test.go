package httpx

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testListener struct {
	addr net.TCPAddr
}

func (tl testListener) Accept() (net.Conn, error) { return nil, nil }
func (tl testListener) Close() error              { return nil }
func (tl testListener) Addr() net.Addr            { return &tl.addr }

func NewTCP(port int) Listener {
	return Listener{testListener{addr: net.TCPAddr{Port: port}}}
}

func TestBuildAddress(t *testing.T) {
	tests := []struct {
		addr string
		ls   Listener
		rez  string
	}{
		{addr: "", rez: "localhost"},
		{addr: ":", ls: NewTCP(0), rez: "localhost"},
		{addr: "", ls: NewTCP(393), rez: "localhost:393"},
		{addr: ":8080", ls: NewTCP(8080), rez: "localhost:8080"},
		{addr: ":8080", ls: NewTCP(8081), rez: "localhost:8081"},
		{addr: "host:8080", ls: NewTCP(8080), rez: "host:8080"},
		{addr: "host:8080", ls: NewTCP(8081), rez: "host:8081"},
		{addr: ":80", ls: NewTCP(80), rez: "localhost"},
		{addr: "[::]", rez: "[::]"},
	}

	for _, test := range tests {
		assert.Equal(t, test.rez, buildAddress(test.addr, test.ls), test.addr)
	}
}

func TestSplitHostPort(t *testing.T) {
	host, port := Address("localhost:9090").SplitHostPort()
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 9090, port)

	host, port = Address(":abc").SplitHostPort()
	assert.Equal(t, "", host)
	assert.Equal(t, 0, port)

	host, port = Address("garbage").SplitHostPort()
	assert.Equal(t, "garbage", host)
	assert.Equal(t, 0, port)
}
