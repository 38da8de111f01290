package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type responder func(ctx context.Context, prompt string) (string, error)

type route struct {
	match string
	fn    responder
	calls int
}

// LLM is a scripted model. Calls are routed by a substring of the system
// prompt, so one stub can play filter, extractor and critic at once.
type LLM struct {
	mu     sync.Mutex
	routes []*route
}

func NewLLM() *LLM {
	return &LLM{}
}

// On answers calls whose system prompt contains match with replies in order,
// repeating the last one once the script runs out.
func (l *LLM) On(match string, replies ...string) *LLM {
	var (
		mu   sync.Mutex
		next int
	)
	return l.OnFunc(match, func(ctx context.Context, prompt string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(replies) == 0 {
			return "", fmt.Errorf("no scripted reply for %q", match)
		}
		reply := replies[min(next, len(replies)-1)]
		next++
		return reply, nil
	})
}

func (l *LLM) OnFunc(match string, fn func(ctx context.Context, prompt string) (string, error)) *LLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes = append(l.routes, &route{match: match, fn: fn})
	return l
}

// OnError fails every call routed to match.
func (l *LLM) OnError(match string, err error) *LLM {
	return l.OnFunc(match, func(context.Context, string) (string, error) { return "", err })
}

// OnBlock never answers; calls return when ctx is done.
func (l *LLM) OnBlock(match string) *LLM {
	return l.OnFunc(match, func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
}

func (l *LLM) Generate(ctx context.Context, system, prompt string) (string, error) {
	l.mu.Lock()
	var matched *route
	for _, r := range l.routes {
		if strings.Contains(system, r.match) {
			matched = r
			break
		}
	}
	if matched != nil {
		matched.calls++
	}
	l.mu.Unlock()

	if matched == nil {
		return "", fmt.Errorf("no route for system prompt %q", system)
	}
	return matched.fn(ctx, prompt)
}

func (l *LLM) Calls(match string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.routes {
		if r.match == match {
			return r.calls
		}
	}
	return 0
}
