package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
)

// ErrSuperseded is returned when a newer turn started on the same session
// before this one committed.
var ErrSuperseded = errors.New("turn superseded by a newer request")

// Journal persists committed messages. startSeq is the sequence number of
// the first message in msgs.
type Journal func(ctx context.Context, startSeq int, msgs []models.ChatMessage) error

// Ticket identifies one turn of a Log.
type Ticket struct {
	seq uint64
}

// Log is the append-only history of one session. Only the most recently
// issued ticket may commit, so history always follows initiation order.
type Log struct {
	mu       sync.Mutex
	messages []models.ChatMessage
	issued   uint64
	journal  Journal
}

// NewLog starts a log from previously persisted history. journal may be nil.
func NewLog(history []models.ChatMessage, journal Journal) *Log {
	messages := make([]models.ChatMessage, len(history))
	copy(messages, history)
	return &Log{messages: messages, journal: journal}
}

// Begin reserves the next ticket, superseding any outstanding one.
func (l *Log) Begin() Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued++
	return Ticket{seq: l.issued}
}

// Current reports whether t is still the newest ticket.
func (l *Log) Current(t Ticket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return t.seq == l.issued
}

// Commit appends msgs for ticket t. The journal is written first and under
// the lock; if it fails nothing is appended.
func (l *Log) Commit(ctx context.Context, t Ticket, msgs ...models.ChatMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.seq != l.issued {
		return ErrSuperseded
	}
	if l.journal != nil {
		if err := l.journal(ctx, len(l.messages), msgs); err != nil {
			return err
		}
	}
	l.messages = append(l.messages, msgs...)
	return nil
}

// Messages returns a copy of the history.
func (l *Log) Messages() []models.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of committed messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}
