// Package mongo persists loop lifecycle events to MongoDB, one document per
// event, for audit and offline analysis.
package mongo

import (
	"context"
	"errors"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/loopkit/loopkit/events"
	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/runid"
	"github.com/loopkit/loopkit/state"
)

const (
	defaultCollection = "loop_events"
	defaultTimeout     = 5 * time.Second
)

// Options configures the listener.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Listener implements events.Listener by inserting one document per
// lifecycle event into a MongoDB collection.
type Listener struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New returns a Listener backed by the provided Mongo client.
func New(opts Options) (*Listener, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongo: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)
	return &Listener{coll: coll, timeout: timeout}, nil
}

var _ events.Listener = (*Listener)(nil)

type eventDoc struct {
	RunID     string    `bson:"run_id"`
	Kind      string    `bson:"kind"`
	At        time.Time `bson:"at"`
	TurnIndex *int      `bson:"turn_index,omitempty"`
	Message   string    `bson:"message,omitempty"`
	Reason    string    `bson:"reason,omitempty"`
	Error     string    `bson:"error,omitempty"`
}

func (l *Listener) insert(doc eventDoc) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	// Best-effort: the insertion error is discarded here and never reaches
	// the loop being observed.
	_, _ = l.coll.InsertOne(ctx, doc)
}

func (l *Listener) OnLoopStarted(id runid.RunID, userMessage string) {
	l.insert(eventDoc{RunID: id.String(), Kind: "loop_started", At: time.Now(), Message: userMessage})
}

func (l *Listener) OnTurnStarted(id runid.RunID, turnIndex int) {
	l.insert(eventDoc{RunID: id.String(), Kind: "turn_started", At: time.Now(), TurnIndex: &turnIndex})
}

func (l *Listener) OnTurnCompleted(id runid.RunID, turnIndex int, reason *policy.TerminationReason) {
	doc := eventDoc{RunID: id.String(), Kind: "turn_completed", At: time.Now(), TurnIndex: &turnIndex}
	if reason != nil {
		doc.Reason = reason.String()
	}
	l.insert(doc)
}

func (l *Listener) OnLoopCompleted(id runid.RunID, final state.LoopState, reason policy.TerminationReason) {
	l.insert(eventDoc{RunID: id.String(), Kind: "loop_completed", At: time.Now(), Reason: reason.String()})
}

func (l *Listener) OnLoopFailed(id runid.RunID, final state.LoopState, err error) {
	doc := eventDoc{RunID: id.String(), Kind: "loop_failed", At: time.Now()}
	if err != nil {
		doc.Error = err.Error()
	}
	l.insert(doc)
}
