// Package mongo is the second Collection backend: a real MongoDB
// database via go.mongodb.org/mongo-driver. This is the historically
// faithful backend — the engine this module reimplements began life as
// a Mongoose plugin — and is grounded on the branching-document-store
// shape of other_examples/manifests/argon-lab-argon, which depends on
// the same driver to implement Git-like branching over MongoDB
// collections.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chronicled/chronicle/internal/chronicle/store"
)

// Store is a store.Database backed by a MongoDB database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Dial connects to uri and selects dbName, mirroring the SQLite
// backend's New(ctx, path) shape so engine.Initialize can treat both
// backends uniformly.
func Dial(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Collection returns a handle for the named logical collection. Mongo
// creates collections lazily on first write, so there is no
// CREATE-TABLE-equivalent step here.
func (s *Store) Collection(name string) (store.Collection, error) {
	return &collection{coll: s.db.Collection(name)}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if err := s.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("mongo: disconnect: %w", err)
	}
	return nil
}
