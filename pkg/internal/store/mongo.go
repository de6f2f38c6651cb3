package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore maps every collection onto a mongo collection keyed by _id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	hub    *Hub
}

func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if len(uri) == 0 {
		return nil, fmt.Errorf("mongo uri is not configured")
	}

	serverAPIOptions := options.ServerAPI(options.ServerAPIVersion1)
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(serverAPIOptions)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info().Str("uri", uri).Msg("Connected to mongo.")
	return client, nil
}

func NewMongo(client *mongo.Client, database string, hub *Hub) *MongoStore {
	if hub == nil {
		hub = NewHub()
	}
	return &MongoStore{client: client, db: client.Database(database), hub: hub}
}

func (s *MongoStore) Hub() *Hub {
	return s.hub
}

func (s *MongoStore) Create(ctx context.Context, collection string, doc models.Document) (string, error) {
	id := uuid.NewString()
	if err := s.Insert(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) Insert(ctx context.Context, collection, id string, doc models.Document) error {
	payload := bson.M{"_id": id}
	for k, v := range doc {
		payload[k] = v
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, payload); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrAlreadyExists
		}
		return transient(err)
	}

	s.hub.Notify(collection)
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (models.Document, error) {
	var raw bson.M
	if err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, transient(err)
	}
	_, doc := fromBson(raw)
	return doc, nil
}

func fromBson(raw bson.M) (string, models.Document) {
	id, _ := raw["_id"].(string)
	doc := make(models.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}
	return id, doc
}

var mongoOperators = map[Op]string{
	OpEq:  "$eq",
	OpLt:  "$lt",
	OpLte: "$lte",
	OpGt:  "$gt",
	OpGte: "$gte",
}

func mongoFilter(query Query) bson.M {
	filter := bson.M{}
	for _, item := range query.Filters {
		conditions, ok := filter[item.Field].(bson.M)
		if !ok {
			conditions = bson.M{}
			filter[item.Field] = conditions
		}
		conditions[mongoOperators[item.Op]] = item.Value
	}
	return filter
}

func mongoSort(query Query) bson.D {
	sorting := bson.D{}
	for _, order := range query.Orders {
		sorting = append(sorting, bson.E{Key: order.Field, Value: mongoDirection(order.Desc)})
	}
	return append(sorting, bson.E{Key: "_id", Value: mongoDirection(query.IDDesc())})
}

func mongoDirection(desc bool) int {
	if desc {
		return -1
	}
	return 1
}

func (s *MongoStore) Query(ctx context.Context, collection string, query Query) (Snapshot, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(mongoSort(query))
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, mongoFilter(query), opts)
	if err != nil {
		return nil, transient(err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, transient(err)
	}

	out := make(Snapshot, 0, len(raws))
	for _, raw := range raws {
		id, doc := fromBson(raw)
		out = append(out, Record{ID: id, Data: doc})
	}
	return out, nil
}

func (s *MongoStore) Subscribe(ctx context.Context, collection string, query Query, fn ChangeFunc) (Unsubscribe, error) {
	return subscribe(ctx, s.hub, s, collection, query, fn)
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, partial models.Document) error {
	set := bson.M{}
	for k, v := range partial {
		if k == "_id" {
			continue
		}
		set[k] = v
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return transient(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}

	s.hub.Notify(collection)
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return transient(err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}

	s.hub.Notify(collection)
	return nil
}

func (s *MongoStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	start := time.Now()

	// Pipeline update so the clamp is evaluated server side in the same write.
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}}
	next := bson.D{{Key: "$add", Value: bson.A{current, delta}}}
	clamped := bson.D{{Key: "$max", Value: bson.A{0, next}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: field, Value: clamped}}}},
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return transient(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}

	log.Debug().Str("collection", collection).Str("id", id).Str("field", field).
		Int64("delta", delta).Dur("elapsed", time.Since(start)).Msg("Incremented counter.")
	s.hub.Notify(collection)
	return nil
}

func (s *MongoStore) Close() error {
	s.hub.Close()
	return s.client.Disconnect(context.Background())
}
