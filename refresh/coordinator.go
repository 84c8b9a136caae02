package refresh

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// coordinator deduplicates concurrent refresh-token exchanges. Two parallel
// requests from the same browser session would otherwise both spend a
// single-use rotating refresh token, invalidating whichever result lands
// second. Callers joining an in-flight exchange block until it finishes and
// share its result.
type coordinator struct {
	mu       sync.Mutex
	inflight map[string]*refreshCall
}

type refreshCall struct {
	done chan struct{}
	resp tokenResponse
	err  error
}

func newCoordinator() *coordinator {
	return &coordinator{inflight: make(map[string]*refreshCall)}
}

// do runs fn once per refresh token among concurrent callers. The token is
// hashed before use as a map key so raw credentials never sit in the map.
func (c *coordinator) do(refreshToken string, fn func() (tokenResponse, error)) (tokenResponse, error) {
	key := hashToken(refreshToken)

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-call.done
		return call.resp, call.err
	}
	call := &refreshCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	call.resp, call.err = fn()
	close(call.done)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return call.resp, call.err
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
