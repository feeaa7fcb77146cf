package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/JiscSD/ammolib/request"
)

// Handler is a function supplied by command subscribers.
type Handler func(ctx context.Context, req *request.Request) error

// subscriptions associates handlers to command actions.
type subscriptions struct {
	s map[string]Handler
	sync.RWMutex
}

// Subscribe a handler to a specific action.
func (s *subscriptions) Subscribe(action string, h Handler) {
	s.Lock()
	defer s.Unlock()
	s.s[action] = h
}

// handle runs the registered handler according to the action.
func (s *subscriptions) handle(ctx context.Context, action string, req *request.Request) error {
	s.RLock()
	h, ok := s.s[action]
	s.RUnlock()
	if !ok {
		return fmt.Errorf("handler not registered for action %s", action)
	}
	return h(ctx, req)
}

// Relay returns a handler that hands requests to d.
func Relay(d request.Distributor) Handler {
	return func(ctx context.Context, req *request.Request) error {
		_, err := d.MakeRequest(ctx, req)
		return err
	}
}
