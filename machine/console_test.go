package machine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleDevice_readPollDeliversBytes(t *testing.T) {
	c := NewController()
	src := strings.NewReader("A")
	var sink bytes.Buffer

	delivered := false
	NewConsoleDevice(c, src, &sink, func() { delivered = true }, nil)

	for i := 0; i < int(ConsoleTime)+10 && !delivered; i++ {
		c.OneTick()
	}

	require.True(t, delivered)
}

func TestConsoleDevice_getCharEmptyFails(t *testing.T) {
	c := NewController()
	cons := NewConsoleDevice(c, strings.NewReader(""), &bytes.Buffer{}, nil, nil)
	_, err := cons.GetChar()
	assert.ErrorIs(t, err, ErrConsoleEmpty)
}

func TestConsoleDevice_putCharBusyFails(t *testing.T) {
	c := NewController()
	var sink bytes.Buffer
	cons := NewConsoleDevice(c, strings.NewReader(""), &sink, nil, nil)

	require.NoError(t, cons.PutChar('x'))
	assert.ErrorIs(t, cons.PutChar('y'), ErrConsoleBusy)
}

func TestConsoleDevice_writeCompletionInvokesHandler(t *testing.T) {
	c := NewController()
	var sink bytes.Buffer
	done := false
	cons := NewConsoleDevice(c, strings.NewReader(""), &sink, nil, func() { done = true })

	require.NoError(t, cons.PutChar('z'))
	for i := 0; i < int(ConsoleTime)+5 && !done; i++ {
		c.OneTick()
	}
	assert.True(t, done)
	assert.Equal(t, "z", sink.String())
}
