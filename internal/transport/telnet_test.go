package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/termbridge/schema"
)

func TestTelnetProcessIncomingStripsPlainNegotiation(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	tn := NewTelnet(schema.TelnetParams{})

	go func() {
		buf := make([]byte, 64)
		server.Read(buf)
	}()

	raw := append([]byte("hi"), iacByte, doByte, optSGA)
	raw = append(raw, []byte("there")...)
	out := tn.processIncoming(client, raw)
	assert.Equal(t, "hithere", string(out))
}

func TestTelnetNegotiateRespondsWillToKnownDoOptions(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	tn := NewTelnet(schema.TelnetParams{})

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		done <- append([]byte(nil), buf[:n]...)
	}()

	tn.negotiate(client, doByte, optSGA)
	select {
	case got := <-done:
		assert.Equal(t, []byte{iacByte, willByte, optSGA}, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for negotiation response")
	}
}

func TestTelnetNegotiateAcksStatusOption(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	tn := NewTelnet(schema.TelnetParams{})

	doDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		doDone <- append([]byte(nil), buf[:n]...)
	}()
	tn.negotiate(client, doByte, optStatus)
	select {
	case got := <-doDone:
		assert.Equal(t, []byte{iacByte, willByte, optStatus}, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for DO STATUS response")
	}

	willDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		willDone <- append([]byte(nil), buf[:n]...)
	}()
	tn.negotiate(client, willByte, optStatus)
	select {
	case got := <-willDone:
		assert.Equal(t, []byte{iacByte, doByte, optStatus}, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for WILL STATUS response")
	}
}

func TestTelnetNegotiateRefusesUnknownDoOption(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	tn := NewTelnet(schema.TelnetParams{})

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		done <- append([]byte(nil), buf[:n]...)
	}()

	tn.negotiate(client, doByte, 99)
	select {
	case got := <-done:
		assert.Equal(t, []byte{iacByte, wontByte, 99}, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for negotiation response")
	}
}

func TestTelnetHandleSubnegotiationRespondsWithTerminalType(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	tn := NewTelnet(schema.TelnetParams{TerminalType: "vt100"})

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		done <- append([]byte(nil), buf[:n]...)
	}()

	tn.handleSubnegotiation(client, []byte{optTTYPE, ttypeSend})
	select {
	case got := <-done:
		want := append([]byte{iacByte, sbByte, optTTYPE, ttypeIS}, []byte("vt100")...)
		want = append(want, iacByte, seByte)
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subnegotiation response")
	}
}

func TestTelnetSendEscapesLiteralIAC(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	tn := NewTelnet(schema.TelnetParams{})
	tn.conn = client
	tn.state = schema.TransportConnected

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		done <- append([]byte(nil), buf[:n]...)
	}()

	n, err := tn.Send(nil, []byte{0x41, iacByte, 0x42})
	require.NoError(t, err)
	assert.Equal(t, 3, n, "reported length is the unescaped payload size")
	select {
	case got := <-done:
		assert.Equal(t, []byte{0x41, iacByte, iacByte, 0x42}, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for escaped write")
	}
}

func TestTelnetProcessIncomingBuffersSplitSequence(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	tn := NewTelnet(schema.TelnetParams{})

	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	out1 := tn.processIncoming(client, []byte{iacByte})
	assert.Empty(t, out1)
	assert.Equal(t, []byte{iacByte}, tn.pending)

	out2 := tn.processIncoming(client, []byte{doByte, optSGA, 'y'})
	assert.Equal(t, "y", string(out2))
}

func TestTelnetNAWSSubnegotiationEncodesDimensions(t *testing.T) {
	tn := NewTelnet(schema.TelnetParams{WindowWidth: 132, WindowHeight: 43})
	got := tn.nawsSubnegotiation()
	want := []byte{iacByte, sbByte, optNAWS, 0, 132, 0, 43, iacByte, seByte}
	assert.Equal(t, want, got)
}
