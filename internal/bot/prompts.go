package bot

import "sync"

// step is what the bot expects from the next plain text message of a chat.
type step int

const (
	stepNone step = iota
	stepURL
	stepName
	stepDelete
)

type prompt struct {
	step step
	url  string // feed URL awaiting a name
}

// prompts tracks the pending question per chat.
type prompts struct {
	mu sync.Mutex
	m  map[int64]prompt
}

func newPrompts() *prompts {
	return &prompts{m: make(map[int64]prompt)}
}

func (p *prompts) get(chatID int64) prompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m[chatID]
}

func (p *prompts) set(chatID int64, pr prompt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[chatID] = pr
}

func (p *prompts) clear(chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, chatID)
}
