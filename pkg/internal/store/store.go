package store

import (
	"context"
	"fmt"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
)

// C is the store used by the running process.
var C Store

type Op string

const (
	OpEq  = Op("==")
	OpLt  = Op("<")
	OpLte = Op("<=")
	OpGt  = Op(">")
	OpGte = Op(">=")
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

// Query selects documents of one collection. Records that tie on every order
// are ordered by id, following the direction of the last order.
type Query struct {
	Filters []Filter
	Orders  []Order
	Limit   int
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter{}, q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(append([]Order{}, q.Orders...), Order{Field: field, Desc: desc})
	return q
}

func (q Query) Take(limit int) Query {
	q.Limit = limit
	return q
}

// IDDesc reports the direction of the id tie-break.
func (q Query) IDDesc() bool {
	if len(q.Orders) == 0 {
		return false
	}
	return q.Orders[len(q.Orders)-1].Desc
}

func (q Query) Validate() error {
	for _, filter := range q.Filters {
		if len(filter.Field) == 0 {
			return fmt.Errorf("%w: filter without field", models.ErrValidation)
		}
		switch filter.Op {
		case OpEq, OpLt, OpLte, OpGt, OpGte:
		default:
			return fmt.Errorf("%w: unsupported operator %q", models.ErrValidation, filter.Op)
		}
	}
	for _, order := range q.Orders {
		if len(order.Field) == 0 {
			return fmt.Errorf("%w: order without field", models.ErrValidation)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", models.ErrValidation)
	}
	return nil
}

type Record struct {
	ID   string          `json:"id"`
	Data models.Document `json:"data"`
}

type Snapshot []Record

// ChangeFunc receives the full result of a subscribed query every time it may have changed.
type ChangeFunc func(snapshot Snapshot, err error)

// Unsubscribe tears a subscription down. It is safe to call more than once.
type Unsubscribe func()

type Store interface {
	Create(ctx context.Context, collection string, doc models.Document) (string, error)
	// Insert writes a document under a known id, failing with ErrAlreadyExists when taken.
	Insert(ctx context.Context, collection, id string, doc models.Document) error
	Get(ctx context.Context, collection, id string) (models.Document, error)
	Query(ctx context.Context, collection string, query Query) (Snapshot, error)
	// Subscribe delivers the query result immediately and again after every write to the collection.
	Subscribe(ctx context.Context, collection string, query Query, fn ChangeFunc) (Unsubscribe, error)
	// Update shallow merges partial into the stored document.
	Update(ctx context.Context, collection, id string, partial models.Document) error
	Delete(ctx context.Context, collection, id string) error
	// Increment adds delta to a numeric field atomically, never going below zero.
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	Close() error
}

func transient(err error) error {
	return fmt.Errorf("%w: %v", models.ErrTransient, err)
}

func subscribe(ctx context.Context, hub *Hub, s Store, collection string, query Query, fn ChangeFunc) (Unsubscribe, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hub.Watch(ctx, collection, func(ctx context.Context) (Snapshot, error) {
		return s.Query(ctx, collection, query)
	}, fn), nil
}
