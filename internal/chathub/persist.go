package chathub

import (
	"log/slog"
	"time"

	"anonpair/backend/internal/models"
	"anonpair/backend/internal/storage"
)

const defaultPersistQueueSize = 256

// Persister decouples matchmaking from durable storage. Coordinator
// operations enqueue write tasks without blocking; a single worker
// goroutine applies them in order. Failures are logged at warning level
// and swallowed: the in-memory hub state is authoritative and is never
// rolled back because of a storage problem.
type Persister struct {
	store storage.Store
	log   *slog.Logger
	tasks chan persistTask
	done  chan struct{}
}

type persistTask struct {
	op  string
	run func() error
}

func NewPersister(store storage.Store, queueSize int, log *slog.Logger) *Persister {
	if queueSize <= 0 {
		queueSize = defaultPersistQueueSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Persister{
		store: store,
		log:   log,
		tasks: make(chan persistTask, queueSize),
		done:  make(chan struct{}),
	}
}

// Run consumes the task queue until Close is called.
func (p *Persister) Run() {
	for t := range p.tasks {
		if err := t.run(); err != nil {
			p.log.Warn("persistence write failed", "op", t.op, "err", err)
		}
	}
	close(p.done)
}

// Close stops the worker after draining already-queued tasks. No task
// may be submitted afterwards.
func (p *Persister) Close() {
	close(p.tasks)
	<-p.done
}

// submit enqueues a task without ever blocking the caller. When the
// queue is full the write is dropped, which the best-effort contract
// allows.
func (p *Persister) submit(op string, run func() error) {
	select {
	case p.tasks <- persistTask{op: op, run: run}:
	default:
		p.log.Warn("persistence queue full, dropping write", "op", op)
	}
}

func (p *Persister) SaveParticipant(rec *models.Participant) {
	p.submit("save participant", func() error { return p.store.SaveParticipant(rec) })
}

func (p *Persister) UpdateParticipant(id string, fields map[string]any) {
	p.submit("update participant", func() error { return p.store.UpdateParticipant(id, fields) })
}

func (p *Persister) DeleteParticipant(id string) {
	p.submit("delete participant", func() error { return p.store.DeleteParticipant(id) })
}

func (p *Persister) CreateSession(session *models.ChatSession) {
	p.submit("create session", func() error { return p.store.CreateSession(session) })
}

func (p *Persister) AppendMessage(msg *models.ChatMessage) {
	p.submit("append message", func() error { return p.store.AppendMessage(msg) })
}

func (p *Persister) CloseSession(sessionID string, endedAt time.Time) {
	p.submit("close session", func() error { return p.store.CloseSession(sessionID, endedAt) })
}

func (p *Persister) AddToSearchQueue(id string) {
	p.submit("queue add", func() error { return p.store.AddToSearchQueue(id) })
}

func (p *Persister) RemoveFromSearchQueue(id string) {
	p.submit("queue remove", func() error { return p.store.RemoveFromSearchQueue(id) })
}
