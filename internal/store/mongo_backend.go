package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoBackend stores each collection in a MongoDB collection with _id = id.
type MongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials, pings and prepares indexes.
func ConnectMongo(ctx context.Context, uri, dbName string) (*MongoBackend, error) {
	start := time.Now()
	zap.S().Infof("mongo: connecting uri=%s db=%s", redactURI(uri), dbName)

	dctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	c, err := mongo.Connect(dctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err = c.Ping(dctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	m := &MongoBackend{client: c, db: c.Database(dbName)}
	if err := m.createIndexes(ctx); err != nil {
		zap.S().Warnf("mongo: index creation warnings: %v", err)
	}

	zap.S().Infof("mongo: connected ok in %s", time.Since(start).Round(time.Millisecond))
	return m, nil
}

func (m *MongoBackend) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongo lectura %s/%s: %w", collection, id, err)
	}
	return true, nil
}

func (m *MongoBackend) Put(ctx context.Context, collection, id string, doc any) error {
	_, err := m.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo escritura %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *MongoBackend) Delete(ctx context.Context, collection, id string) error {
	if _, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo borrado %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *MongoBackend) Query(ctx context.Context, collection, field, value string, out any) error {
	return m.find(ctx, collection, bson.M{field: value}, out)
}

func (m *MongoBackend) All(ctx context.Context, collection string, out any) error {
	return m.find(ctx, collection, bson.M{}, out)
}

func (m *MongoBackend) find(ctx context.Context, collection string, filter bson.M, out any) error {
	cur, err := m.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongo consulta %s: %w", collection, err)
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("mongo decodificación %s: %w", collection, err)
	}
	return nil
}

func (m *MongoBackend) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoBackend) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoBackend) createIndexes(ctx context.Context) error {
	ctxIdx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		CollectionReports: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "numeroReporte", Value: 1}}},
			{Keys: bson.D{{Key: "usuarioId", Value: 1}}},
			{Keys: bson.D{{Key: "provincia", Value: 1}, {Key: "municipio", Value: 1}}},
		},
		CollectionPendingReports: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		CollectionUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	var errs []string
	for collection, models := range indexes {
		if _, err := m.db.Collection(collection).Indexes().CreateMany(ctxIdx, models); err != nil {
			errs = append(errs, collection+": "+err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func redactURI(raw string) string {
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("****", "****")
	return u.String()
}
