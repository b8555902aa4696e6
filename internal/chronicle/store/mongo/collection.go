package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chronicled/chronicle/internal/chronicle/idgen"
	"github.com/chronicled/chronicle/internal/chronicle/store"
)

type collection struct {
	coll *mongo.Collection
}

func toBsonFilter(filter store.Filter) bson.M {
	out := bson.M{}
	for field, v := range filter {
		switch val := v.(type) {
		case store.Gt:
			out[field] = bson.M{"$gt": val.Value}
		case store.Gte:
			out[field] = bson.M{"$gte": val.Value}
		case store.Lt:
			out[field] = bson.M{"$lt": val.Value}
		case store.Lte:
			out[field] = bson.M{"$lte": val.Value}
		case store.Ne:
			out[field] = bson.M{"$ne": val.Value}
		default:
			out[field] = v
		}
	}
	return out
}

func toBsonSort(sort store.Sort) bson.D {
	d := bson.D{}
	for _, f := range sort {
		dir := 1
		if !f.Ascending {
			dir = -1
		}
		d = append(d, bson.E{Key: f.Field, Value: dir})
	}
	return d
}

func toDoc(raw bson.M) store.Doc {
	out := store.Doc{}
	for k, v := range raw {
		if k == "_id" {
			if oid, ok := v.(string); ok {
				out["_id"] = oid
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (c *collection) InsertOne(ctx context.Context, doc store.Doc) error {
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = idgen.New()
	}
	_, err := c.coll.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return fmt.Errorf("mongo: insertOne: %w", err)
	}
	return nil
}

func (c *collection) UpdateOne(ctx context.Context, filter store.Filter, update store.Update, opts store.UpdateOptions) error {
	_, err := c.coll.UpdateOne(ctx, toBsonFilter(filter), bson.M{"$set": bson.M(update)},
		options.Update().SetUpsert(opts.Upsert))
	if err != nil {
		return fmt.Errorf("mongo: updateOne: %w", err)
	}
	return nil
}

func (c *collection) UpdateMany(ctx context.Context, filter store.Filter, update store.Update) (int, error) {
	res, err := c.coll.UpdateMany(ctx, toBsonFilter(filter), bson.M{"$set": bson.M(update)})
	if err != nil {
		return 0, fmt.Errorf("mongo: updateMany: %w", err)
	}
	return int(res.MatchedCount), nil
}

func (c *collection) DeleteOne(ctx context.Context, filter store.Filter) error {
	if _, err := c.coll.DeleteOne(ctx, toBsonFilter(filter)); err != nil {
		return fmt.Errorf("mongo: deleteOne: %w", err)
	}
	return nil
}

func (c *collection) DeleteMany(ctx context.Context, filter store.Filter) (int, error) {
	res, err := c.coll.DeleteMany(ctx, toBsonFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("mongo: deleteMany: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (c *collection) FindOne(ctx context.Context, filter store.Filter, opts store.FindOptions) (store.Doc, error) {
	findOpts := options.FindOne()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(toBsonSort(opts.Sort))
	}
	var raw bson.M
	err := c.coll.FindOne(ctx, toBsonFilter(filter), findOpts).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: findOne: %w", err)
	}
	return toDoc(raw), nil
}

func (c *collection) Find(ctx context.Context, filter store.Filter, opts store.FindOptions) ([]store.Doc, error) {
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(toBsonSort(opts.Sort))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	cur, err := c.coll.Find(ctx, toBsonFilter(filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []store.Doc
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mongo: find: decode: %w", err)
		}
		out = append(out, toDoc(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: find: %w", err)
	}
	return out, nil
}

func (c *collection) CountDocuments(ctx context.Context, filter store.Filter) (int, error) {
	n, err := c.coll.CountDocuments(ctx, toBsonFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("mongo: countDocuments: %w", err)
	}
	return int(n), nil
}

func (c *collection) CreateIndex(ctx context.Context, spec store.IndexSpec) error {
	keys := bson.D{}
	for _, f := range spec.Fields {
		dir := 1
		if !f.Ascending {
			dir = -1
		}
		keys = append(keys, bson.E{Key: f.Field, Value: dir})
	}
	idxOpts := options.Index().SetName(spec.Name)
	if spec.Unique {
		idxOpts.SetUnique(true)
	}
	if len(spec.Partial) > 0 {
		idxOpts.SetPartialFilterExpression(toBsonFilter(spec.Partial))
	}
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: idxOpts})
	if err != nil {
		return fmt.Errorf("mongo: createIndex %s: %w", spec.Name, err)
	}
	return nil
}
