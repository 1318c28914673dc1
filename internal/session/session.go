package session

import (
	"context"
	"sync"
)

type envelope struct {
	intent    Intent
	processed chan struct{}
}

// Session is the ordered intent stream of one connection.
type Session struct {
	id    string
	coord *Coordinator
	inbox chan envelope
	done  chan struct{}

	// mu serializes producers; the worker never takes it.
	mu      sync.Mutex
	closing bool
}

// ID returns the connection id.
func (s *Session) ID() string { return s.id }

// Done is closed once the disconnect teardown has completed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Submit queues an intent without waiting for it to be processed. It blocks
// while the inbox is full and returns false once the session is closing.
func (s *Session) Submit(in Intent) bool {
	return s.enqueue(context.Background(), envelope{intent: in}) == nil
}

// Do queues an intent and waits until it has been processed.
func (s *Session) Do(ctx context.Context, in Intent) error {
	env := envelope{intent: in, processed: make(chan struct{})}
	if err := s.enqueue(ctx, env); err != nil {
		return err
	}
	select {
	case <-env.processed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close queues a disconnect behind any pending intents and waits for the
// teardown to finish. It is safe to call more than once.
func (s *Session) Close() {
	_ = s.enqueue(context.Background(), envelope{intent: Intent{Kind: Disconnect}})
	<-s.done
}

func (s *Session) enqueue(ctx context.Context, env envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return ErrSessionClosed
	}
	select {
	case s.inbox <- env:
		if env.intent.Kind == Disconnect {
			s.closing = true
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer s.coord.forget(s.id)

	for env := range s.inbox {
		s.coord.handle(s.id, env.intent)
		if env.processed != nil {
			close(env.processed)
		}
		if env.intent.Kind == Disconnect {
			return
		}
	}
}
