// Package mongostore implements store.NotesStore on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/store"
)

type MongoNotesStore struct {
	users  *mongo.Collection
	notes  *mongo.Collection
	shares *mongo.Collection
	tasks  *mongo.Collection
}

func NewMongoNotesStore(ctx context.Context, uri string, dbName string) (*MongoNotesStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	mongoStore := &MongoNotesStore{
		users:  db.Collection("users"),
		notes:  db.Collection("notes"),
		shares: db.Collection("shares"),
		tasks:  db.Collection("tasks"),
	}
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return mongoStore, nil
}

// EnsureIndexes creates the owner lookups used by list queries
func (mongoStore *MongoNotesStore) EnsureIndexes(ctx context.Context) error {
	_, err := mongoStore.notes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "updated_at", Value: -1},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create note indexes: %w", err)
	}

	_, err = mongoStore.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner", Value: 1},
				{Key: "date", Value: 1},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create task indexes: %w", err)
	}
	return nil
}

// setFields picks the named fields out of doc into a $set document
func setFields(doc any, fields []string) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}
	var all bson.M
	if err := bson.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	set := bson.M{}
	for _, f := range fields {
		key, ok := fieldKeys[f]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", f)
		}
		if v, ok := all[key]; ok {
			set[key] = v
		}
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	return set, nil
}

func (mongoStore *MongoNotesStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	userId, err := uuid.NewV7()
	if err != nil {
		return models.User{}, err
	}
	user.Id = userId.String()
	user.Created = time.Now().Unix()

	doc := mongoUser{
		Key:        userKey(user.Provider, user.ProviderId),
		Id:         user.Id,
		Provider:   user.Provider,
		ProviderId: user.ProviderId,
		Username:   user.Username,
		Created:    user.Created,
	}
	if _, err := mongoStore.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// A concurrent login created the profile first
			return mongoStore.GetUser(ctx, user.Provider, user.ProviderId)
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (mongoStore *MongoNotesStore) GetUser(ctx context.Context, provider string, providerId string) (models.User, error) {
	var doc mongoUser
	err := mongoStore.users.FindOne(ctx, bson.M{"_id": userKey(provider, providerId)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, store.ErrItemNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return models.User{
		Id:         doc.Id,
		Username:   doc.Username,
		Provider:   doc.Provider,
		ProviderId: doc.ProviderId,
		Created:    doc.Created,
	}, nil
}

func (mongoStore *MongoNotesStore) DeleteUser(ctx context.Context, provider string, providerId string) error {
	if _, err := mongoStore.users.DeleteOne(ctx, bson.M{"_id": userKey(provider, providerId)}); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (mongoStore *MongoNotesStore) GetNotes(ctx context.Context, ownerId string) ([]models.Note, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := mongoStore.notes.Find(ctx, bson.M{"owner_id": ownerId}, opts)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoNote
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}

	notes := make([]models.Note, 0, len(docs))
	for _, doc := range docs {
		note := noteFromMongo(doc)
		if err := note.Validate(); err != nil {
			log.Printf("Skipping stored note %s of %s: %v", doc.Id, ownerId, err)
			continue
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func (mongoStore *MongoNotesStore) GetNote(ctx context.Context, ownerId string, noteId string) (models.Note, error) {
	var doc mongoNote
	err := mongoStore.notes.FindOne(ctx, bson.M{"_id": noteId, "owner_id": ownerId}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Note{}, store.ErrItemNotFound
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("find note %s: %w", noteId, err)
	}

	note := noteFromMongo(doc)
	if err := note.Validate(); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

func (mongoStore *MongoNotesStore) SaveNotes(ctx context.Context, ownerId string, notes []models.Note, fields []string) error {
	for _, n := range notes {
		doc := noteToMongo(ownerId, n)
		filter := bson.M{"_id": n.Id, "owner_id": ownerId}

		if fields == nil {
			_, err := mongoStore.notes.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
			if err != nil {
				return fmt.Errorf("save note %s: %w", n.Id, err)
			}
			continue
		}

		set, err := setFields(doc, fields)
		if err != nil {
			return err
		}
		_, err = mongoStore.notes.UpdateOne(ctx, filter, bson.M{"$set": set}, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("save note %s: %w", n.Id, err)
		}
	}
	return nil
}

func (mongoStore *MongoNotesStore) DeleteNote(ctx context.Context, ownerId string, noteId string) error {
	if _, err := mongoStore.notes.DeleteOne(ctx, bson.M{"_id": noteId, "owner_id": ownerId}); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

func (mongoStore *MongoNotesStore) GetPublication(ctx context.Context, code string) (models.SharePublication, error) {
	var doc mongoPublication
	err := mongoStore.shares.FindOne(ctx, bson.M{"_id": code}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.SharePublication{}, store.ErrItemNotFound
	}
	if err != nil {
		return models.SharePublication{}, fmt.Errorf("find publication %s: %w", code, err)
	}

	pub := publicationFromMongo(doc)
	if err := pub.Validate(); err != nil {
		return models.SharePublication{}, err
	}
	return pub, nil
}

func (mongoStore *MongoNotesStore) CreatePublication(ctx context.Context, pub models.SharePublication) (bool, error) {
	_, err := mongoStore.shares.InsertOne(ctx, publicationToMongo(pub))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert publication: %w", err)
	}
	return true, nil
}

func (mongoStore *MongoNotesStore) SetPublication(ctx context.Context, pub models.SharePublication, fields []string) error {
	doc := publicationToMongo(pub)
	filter := bson.M{"_id": pub.Code}

	var result *mongo.UpdateResult
	var err error
	if fields == nil {
		result, err = mongoStore.shares.ReplaceOne(ctx, filter, doc)
	} else {
		var set bson.M
		set, err = setFields(doc, fields)
		if err != nil {
			return err
		}
		result, err = mongoStore.shares.UpdateOne(ctx, filter, bson.M{"$set": set})
	}
	if err != nil {
		return fmt.Errorf("update publication %s: %w", pub.Code, err)
	}
	if result.MatchedCount == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

func (mongoStore *MongoNotesStore) DeletePublication(ctx context.Context, code string) error {
	result, err := mongoStore.shares.DeleteOne(ctx, bson.M{"_id": code})
	if err != nil {
		return fmt.Errorf("delete publication: %w", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

func (mongoStore *MongoNotesStore) GetTasks(ctx context.Context, owner string) ([]models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := mongoStore.tasks.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoTask
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, taskFromMongo(doc))
	}
	return tasks, nil
}

func (mongoStore *MongoNotesStore) CreateTask(ctx context.Context, task models.Task) error {
	_, err := mongoStore.tasks.InsertOne(ctx, taskToMongo(task))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (mongoStore *MongoNotesStore) UpdateTask(ctx context.Context, task models.Task, fields []string) error {
	set, err := setFields(taskToMongo(task), fields)
	if err != nil {
		return err
	}
	result, err := mongoStore.tasks.UpdateOne(ctx, bson.M{"_id": task.Id, "owner": task.Owner}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.Id, err)
	}
	if result.MatchedCount == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

func (mongoStore *MongoNotesStore) DeleteTask(ctx context.Context, owner string, taskId string) error {
	if _, err := mongoStore.tasks.DeleteOne(ctx, bson.M{"_id": taskId, "owner": owner}); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
