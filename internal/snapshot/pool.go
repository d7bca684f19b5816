package snapshot

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Pool is a free list of parsers. A borrowed parser is used by one parse at
// a time and reset before it goes back.
type Pool struct {
	mu   sync.Mutex
	free []*sitter.Parser
}

func NewPool() *Pool {
	return &Pool{}
}

func (p *Pool) Get() *sitter.Parser {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		parser := p.free[n-1]
		p.free = p.free[:n-1]
		return parser
	}
	return sitter.NewParser()
}

// Put resets parser and returns it to the pool. An empty range list always
// succeeds; a parser that still refuses it is closed instead of pooled.
func (p *Pool) Put(parser *sitter.Parser) {
	parser.Reset()
	if err := parser.SetIncludedRanges(nil); err != nil {
		parser.Close()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, parser)
}

// Idle returns the number of parsers waiting in the pool.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, parser := range p.free {
		parser.Close()
	}
	p.free = nil
}
