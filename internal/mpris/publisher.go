// Package mpris exposes the now playing record on the MPRIS D-Bus
// interface. The player is read-only: remote commands are refused.
package mpris

import (
	"errors"
	"sync"

	"github.com/llehouerou/lineup/internal/nowplaying"
)

// ErrReadOnly is returned for every MPRIS control method.
var ErrReadOnly = errors.New("remote control is not supported")

// Publisher is a nowplaying.Sink backing the MPRIS player properties.
type Publisher struct {
	mu   sync.RWMutex
	info *nowplaying.Info

	server closer
}

type closer interface {
	Stop() error
}

var _ nowplaying.Sink = (*Publisher)(nil)

func (p *Publisher) Publish(info nowplaying.Info) {
	p.mu.Lock()
	p.info = &info
	p.mu.Unlock()
}

func (p *Publisher) Clear() {
	p.mu.Lock()
	p.info = nil
	p.mu.Unlock()
}

func (p *Publisher) snapshot() (nowplaying.Info, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.info == nil {
		return nowplaying.Info{}, false
	}
	return *p.info, true
}

// Close releases the bus name.
func (p *Publisher) Close() error {
	if p.server == nil {
		return nil
	}
	return p.server.Stop()
}
