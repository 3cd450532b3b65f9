package observability

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginsEndpointReturnsRoster(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterRPC("alpha")

	s := NewServer("127.0.0.1:0", reg, zerolog.Nop())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/plugins", nil)

	s.http.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var plugins []PluginInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plugins))
	require.Len(t, plugins, 1)
	assert.Equal(t, "alpha", plugins[0].Name)
}

func TestSSEEndpointStreamsUpsertUpdate(t *testing.T) {
	reg := NewRegistry()
	s := NewServer("127.0.0.1:0", reg, zerolog.Nop())

	ts := httptest.NewServer(s.http.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)

	time.Sleep(20 * time.Millisecond)
	reg.RegisterRPC("gamma")

	line, err := readDataLine(reader, 2*time.Second)
	require.NoError(t, err)
	assert.Contains(t, line, "gamma")
	assert.Contains(t, line, "upsert")
}

func readDataLine(r *bufio.Reader, timeout time.Duration) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				ch <- result{err: err}
				return
			}
			if strings.HasPrefix(line, "data: ") {
				ch <- result{line: line}
				return
			}
		}
	}()

	select {
	case res := <-ch:
		return res.line, res.err
	case <-time.After(timeout):
		return "", assertTimeout
	}
}

var assertTimeout = errTimeout{}

type errTimeout struct{}

func (errTimeout) Error() string { return "timed out waiting for sse data line" }
