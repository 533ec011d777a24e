package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/pkg/config"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

// MongoStore stores each collection as a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	clock  *Clock
}

// OpenMongo connects to cfg.MongoURI and selects cfg.MongoDatabase.
func OpenMongo(ctx context.Context, cfg *config.StoreConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logging.GetLogger().Info("Mongo connection established", zap.String("database", cfg.MongoDatabase))

	// BSON datetimes carry milliseconds
	return &MongoStore{client: client, db: client.Database(cfg.MongoDatabase), clock: NewClock(time.Millisecond)}, nil
}

func (s *MongoStore) Driver() string { return "mongo" }

// Migrate creates the listed indexes. Collections are created on first write.
func (s *MongoStore) Migrate(ctx context.Context, collections ...Collection) error {
	for _, c := range collections {
		indexes := []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
				Options: options.Index().SetName("idx_" + c.Name + "_created"),
			},
		}
		for _, fields := range c.Indexes {
			model, err := mongoIndex(c.Name, fields, false)
			if err != nil {
				return err
			}
			indexes = append(indexes, model)
		}
		for _, fields := range c.Unique {
			model, err := mongoIndex(c.Name, fields, true)
			if err != nil {
				return err
			}
			indexes = append(indexes, model)
		}
		if _, err := s.db.Collection(c.Name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("index %s: %w", c.Name, err)
		}
	}
	return nil
}

func mongoIndex(collection string, fields []string, unique bool) (mongo.IndexModel, error) {
	keys := bson.D{}
	for _, f := range fields {
		if !validField(f) {
			return mongo.IndexModel{}, ErrInvalidQuery
		}
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	prefix := "idx_"
	if unique {
		prefix = "uniq_"
	}
	opts := options.Index().SetName(prefix + collection + "_" + strings.Join(fields, "_"))
	if unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}, nil
}

func (s *MongoStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	id := doc.DocMeta().ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.Put(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) Put(ctx context.Context, collection, id string, doc Document) error {
	if id == "" {
		return ErrInvalidQuery
	}
	stamp(doc, id, s.clock.Now())
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string, dest Document) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func mongoFilter(filters []Eq) bson.M {
	filter := bson.M{}
	for _, f := range filters {
		key := f.Field
		if key == "id" {
			key = "_id"
		}
		filter[key] = f.Value
	}
	return filter
}

func (s *MongoStore) Find(ctx context.Context, collection string, q Query, dest interface{}) error {
	if err := validateQuery(q); err != nil {
		return err
	}

	filter := mongoFilter(q.Filters)
	dir := 1
	op := "$gt"
	if q.Desc {
		dir = -1
		op = "$lt"
	}
	if q.After != nil {
		at := q.After.At.UTC()
		filter["$or"] = []bson.M{
			{"created_at": bson.M{op: at}},
			{"created_at": at, "_id": bson.M{op: q.After.ID}},
		}
	}

	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}})
	if q.Limit > 0 {
		find.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, find)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, dest)
}

func (s *MongoStore) Count(ctx context.Context, collection string, filters ...Eq) (int64, error) {
	if err := validateQuery(Query{Filters: filters}); err != nil {
		return 0, err
	}
	return s.db.Collection(collection).CountDocuments(ctx, mongoFilter(filters))
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, p Patch) (time.Time, error) {
	if err := validatePatch(p); err != nil {
		return time.Time{}, err
	}

	set := bson.M{}
	for k, v := range p.Set {
		set[k] = v
	}
	var touched time.Time
	if p.Touch {
		touched = s.clock.Now()
		set["updated_at"] = touched
	}
	update := bson.M{"$inc": bson.M{"version": 1}}
	if len(set) > 0 {
		update["$set"] = set
	}

	filter := bson.M{"_id": id}
	if p.IfVersion > 0 {
		filter["version"] = p.IfVersion
	}

	c := s.db.Collection(collection)
	res, err := c.UpdateOne(ctx, filter, update)
	if err != nil {
		return time.Time{}, err
	}
	if res.MatchedCount > 0 {
		return touched, nil
	}

	n, err := c.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return time.Time{}, err
	}
	if n == 0 {
		return time.Time{}, ErrNotFound
	}
	return time.Time{}, ErrConflict
}

func (s *MongoStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
