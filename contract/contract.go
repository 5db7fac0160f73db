//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"logserver/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Sink is one destination of the fan-out.
// Handle is called only from the ingestion loop and must return in bounded time.
// Reopen is serialized against Handle by the caller.
type Sink interface {
	Name() string
	Open(ctx context.Context) error
	Handle(ctx context.Context, e domain.Event) domain.Outcome
	Reopen() error
	StopAcceptingPrimaryStore()
	Close(ctx context.Context) error
}

// EventStore is the persistence backend behind the database sink.
type EventStore interface {
	Probe(ctx context.Context) error
	Insert(ctx context.Context, e domain.Event) error
	Close() error
}

// Subscription delivers raw frames in publication order per publisher.
type Subscription interface {
	Frames() <-chan []byte
	Close() error
}

type Transport interface {
	Subscribe(buffer int) (Subscription, error)
}

type Publisher interface {
	Publish(ctx context.Context, frame []byte) error
}
