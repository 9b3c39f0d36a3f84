package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Config struct {
	URI        string `yaml:"uri" env:"RESERVE_MONGO_URI"`
	Database   string `yaml:"database" env:"RESERVE_MONGO_DATABASE" env-default:"reserve"`
	Collection string `yaml:"collection" env:"RESERVE_MONGO_COLLECTION" env-default:"settings"`
}

// Store keeps session settings in a Mongo collection, one document per
// session keyed by the session id.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type document struct {
	ID       string            `bson:"_id"`
	Settings settings.Settings `bson:"settings"`
	Updated  time.Time         `bson:"updated"`
}

func toDocument(session uuid.UUID, s settings.Settings, now time.Time) document {
	return document{ID: session.String(), Settings: s, Updated: now}
}

// Connect dials the server and checks it answers.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.NewClient(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}
	log.Info().Str("database", cfg.Database).Str("collection", cfg.Collection).Msg("[Mongo] connected")
	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Load(ctx context.Context, session uuid.UUID) (settings.Settings, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": session.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return settings.Settings{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("mongodb: load %s: %w", session, err)
	}
	return doc.Settings, nil
}

func (s *Store) Save(ctx context.Context, session uuid.UUID, set settings.Settings) error {
	doc := toDocument(session, set, time.Now().UTC())
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("mongodb: save %s: %w", session, err)
	}
	return nil
}
