package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/peakee-labs/blinders/auth"
)

// MongoDirectory resolves users from a MongoDB users collection keyed by the
// identity provider's uid.
type MongoDirectory struct {
	users *mongo.Collection
}

func NewMongoDirectory(users *mongo.Collection) *MongoDirectory {
	return &MongoDirectory{users: users}
}

// ConnectMongo opens a client for uri and pings it.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

type userDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	FirebaseUID string             `bson:"firebaseUID"`
	Email       string             `bson:"email"`
	Name        string             `bson:"name"`
}

func (d *MongoDirectory) FindBySubject(ctx context.Context, subjectID string) (*auth.UserRecord, error) {
	var doc userDocument
	err := d.users.FindOne(ctx, bson.M{"firebaseUID": subjectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return &auth.UserRecord{
		ID:        doc.ID.Hex(),
		SubjectID: doc.FirebaseUID,
		Email:     doc.Email,
		Name:      doc.Name,
	}, nil
}
