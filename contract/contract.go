//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"parley/protocol"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself. Supervision, restarts, and panic
// recovery are the supervisor's job.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision without manual naming in the interface.
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

// EventSink receives protocol events destined for one live connection.
// Implementations must never block the caller; a slow consumer drops
// or disconnects, it does not stall the broadcaster.
type EventSink interface {
	Consume(ctx context.Context, e protocol.Event) error
}

// IRegistry tracks live connections and which room each one is in.
// It is the lookup table behind the broadcast router.
type IRegistry interface {
	Subscribe(connID string, sink EventSink)
	Unsubscribe(connID string)
	EnterRoom(connID, roomID string)
	SinksForRoom(roomID string) []EventSink
	AllSinks() []EventSink
	Sink(connID string) (EventSink, bool)
}

// IBlobStore stores decoded image bytes and returns a public URL.
// Size caps and format checks happen before upload.
type IBlobStore interface {
	StoreAvatar(ctx context.Context, username string, data []byte, ext string) (string, error)
	StoreChatImage(ctx context.Context, data []byte, ext string) (string, error)
}
