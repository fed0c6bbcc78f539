package dynamo

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gofrs/uuid/v5"

	"github.com/dayzy/notes/models"
)

type DynamoNotesStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoNotesStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoNotesStore, error) {
	client, err := newDynamoDBClient(ctx, devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, tableName) {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoNotesStore{client: client, tableName: tableName}, nil
}

func (dynamoStore *DynamoNotesStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	userId, err := uuid.NewV7()
	if err != nil {
		return models.User{}, err
	}
	user.Id = userId.String()

	du := userToDynamo(user)
	du.Created = time.Now().Unix()
	// A concurrent login may have created the profile first; keep that one
	du, _, err = ensureItem(dynamoStore, ctx, du)
	if err != nil {
		return models.User{}, err
	}

	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoNotesStore) GetUser(ctx context.Context, provider string, providerId string) (models.User, error) {
	du, err := getItem[dynamoUser](dynamoStore, ctx, userKey(provider, providerId), profileSortKey, false)
	if err != nil {
		return models.User{}, err
	}
	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoNotesStore) DeleteUser(ctx context.Context, provider string, providerId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, userKey(provider, providerId), profileSortKey, "", "")
}

func (dynamoStore *DynamoNotesStore) GetNotes(ctx context.Context, ownerId string) ([]models.Note, error) {
	items, err := queryAllByPK[dynamoNote](dynamoStore, ctx, notesKey(ownerId), true)
	if err != nil {
		return nil, err
	}

	notes := make([]models.Note, 0, len(items))
	for _, item := range items {
		note := noteFromDynamo(item)
		if err := note.Validate(); err != nil {
			log.Printf("Skipping stored note %s of %s: %v", item.SK, ownerId, err)
			continue
		}
		notes = append(notes, note)
	}

	slices.SortStableFunc(notes, func(a, b models.Note) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return notes, nil
}

func (dynamoStore *DynamoNotesStore) GetNote(ctx context.Context, ownerId string, noteId string) (models.Note, error) {
	item, err := getItem[dynamoNote](dynamoStore, ctx, notesKey(ownerId), noteSortKey(noteId), true)
	if err != nil {
		return models.Note{}, err
	}

	note := noteFromDynamo(item)
	if err := note.Validate(); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

func (dynamoStore *DynamoNotesStore) SaveNotes(ctx context.Context, ownerId string, notes []models.Note, fields []string) error {
	if fields == nil {
		items := make([]dynamoNote, 0, len(notes))
		for _, n := range notes {
			items = append(items, noteToDynamo(ownerId, n))
		}
		requests, err := putRequests(items)
		if err != nil {
			return err
		}
		_, err = writeBatchRequests[dynamoNote](dynamoStore, ctx, requests)
		return err
	}

	// Merge writes always carry the identity fields so a created item is
	// readable on its own
	merged := append([]string{models.FieldNoteId, models.FieldOwnerId}, fields...)
	for _, n := range notes {
		if err := updateItem(dynamoStore, ctx, noteToDynamo(ownerId, n), noteFieldNames(merged), false); err != nil {
			return fmt.Errorf("save note %s: %w", n.Id, err)
		}
	}
	return nil
}

// noteFieldNames maps model field names to note attribute names
func noteFieldNames(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == models.FieldNoteId {
			f = "Id"
		}
		out = append(out, f)
	}
	return out
}

func (dynamoStore *DynamoNotesStore) DeleteNote(ctx context.Context, ownerId string, noteId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, notesKey(ownerId), noteSortKey(noteId), "", "")
}

func (dynamoStore *DynamoNotesStore) GetPublication(ctx context.Context, code string) (models.SharePublication, error) {
	item, err := getItem[dynamoPublication](dynamoStore, ctx, shareKey(code), publicationSortKey, true)
	if err != nil {
		return models.SharePublication{}, err
	}

	pub := publicationFromDynamo(item)
	if err := pub.Validate(); err != nil {
		return models.SharePublication{}, err
	}
	return pub, nil
}

func (dynamoStore *DynamoNotesStore) CreatePublication(ctx context.Context, pub models.SharePublication) (bool, error) {
	_, created, err := ensureItem(dynamoStore, ctx, publicationToDynamo(pub))
	return created, err
}

func (dynamoStore *DynamoNotesStore) SetPublication(ctx context.Context, pub models.SharePublication, fields []string) error {
	if fields == nil {
		requests, err := putRequests([]dynamoPublication{publicationToDynamo(pub)})
		if err != nil {
			return err
		}
		_, err = writeBatchRequests[dynamoPublication](dynamoStore, ctx, requests)
		return err
	}
	return updateItem(dynamoStore, ctx, publicationToDynamo(pub), fields, true)
}

func (dynamoStore *DynamoNotesStore) DeletePublication(ctx context.Context, code string) error {
	return deleteItemWithCondition(dynamoStore, ctx, shareKey(code), publicationSortKey, "Code", code)
}

func (dynamoStore *DynamoNotesStore) GetTasks(ctx context.Context, owner string) ([]models.Task, error) {
	items, err := queryAllByPK[dynamoTask](dynamoStore, ctx, tasksKey(owner), true)
	if err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(items))
	for _, item := range items {
		tasks = append(tasks, taskFromDynamo(item))
	}
	return tasks, nil
}

func (dynamoStore *DynamoNotesStore) CreateTask(ctx context.Context, task models.Task) error {
	_, _, err := ensureItem(dynamoStore, ctx, taskToDynamo(task))
	return err
}

func (dynamoStore *DynamoNotesStore) UpdateTask(ctx context.Context, task models.Task, fields []string) error {
	return updateItem(dynamoStore, ctx, taskToDynamo(task), fields, true)
}

func (dynamoStore *DynamoNotesStore) DeleteTask(ctx context.Context, owner string, taskId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, tasksKey(owner), taskSortKey(taskId), "", "")
}
