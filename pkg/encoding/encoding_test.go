package encoding

import (
	"bytes"
	stdgzip "compress/gzip"
	"io"
	"strings"
	"testing"

	abrotli "github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiate(t *testing.T) {
	cases := map[string]Encoding{
		"":                      Identity,
		"identity":              Identity,
		"gzip":                  Gzip,
		"GZIP":                  Gzip,
		"deflate, gzip":         Gzip,
		"gzip, br":              Brotli,
		"br;q=0, gzip;q=0.5":    Gzip,
		"gzip;q=0":              Identity,
		"gzip; q=0.000":         Identity,
		" br ; q=1.0 ,identity": Brotli,
	}
	for header, want := range cases {
		assert.Equal(t, want, Negotiate([]byte(header)), header)
	}
}

func TestEncodeToWriter_RoundTrip(t *testing.T) {
	body := []byte(strings.Repeat(`fd_peer_state{peer="nas1.example.com"} 1`+"\n", 200))

	t.Run("gzip", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, EncodeToWriter(Gzip, &out, body))
		assert.Less(t, out.Len(), len(body))

		r, err := stdgzip.NewReader(&out)
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("brotli", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, EncodeToWriter(Brotli, &out, body))
		assert.Less(t, out.Len(), len(body))

		got, err := io.ReadAll(abrotli.NewReader(&out))
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})
}

func TestEncodeToWriter_GzipIsDeterministic(t *testing.T) {
	body := []byte(strings.Repeat("fd_queue_total 0\n", 100))

	var a, b bytes.Buffer
	require.NoError(t, EncodeToWriter(Gzip, &a, body))
	require.NoError(t, EncodeToWriter(Gzip, &b, body))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestEncodeToWriter_Unsupported(t *testing.T) {
	assert.ErrorIs(t, EncodeToWriter(Identity, io.Discard, []byte("x")), ErrUnsupported)
}
