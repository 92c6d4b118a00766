// Package mongo stores homes, favourites and users as MongoDB documents.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"airhome/internal/store"
)

const (
	homesCollection      = "homes"
	favouritesCollection = "favourites"
	usersCollection      = "users"
)

type homeDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	HouseName   string             `bson:"houseName"`
	Price       float64            `bson:"price"`
	Location    string             `bson:"location"`
	Rating      float64            `bson:"rating"`
	Photo       string             `bson:"photo,omitempty"`
	Description string             `bson:"description,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

type favouriteDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Owner     string             `bson:"owner"`
	HomeID    primitive.ObjectID `bson:"homeId"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	FirstName    string             `bson:"firstName"`
	LastName     string             `bson:"lastName,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"passwordHash"`
	UserType     string             `bson:"userType"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

// Store is a Backend over three collections.
type Store struct {
	client     *mongo.Client
	homes      *mongo.Collection
	favourites *mongo.Collection
	users      *mongo.Collection
}

var _ store.Backend = (*Store)(nil)

// Connect dials uri, verifies the deployment and ensures the unique indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := NewFromDatabase(client.Database(database))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewFromDatabase wraps an existing database handle without touching indexes.
func NewFromDatabase(db *mongo.Database) *Store {
	return &Store{
		client:     db.Client(),
		homes:      db.Collection(homesCollection),
		favourites: db.Collection(favouritesCollection),
		users:      db.Collection(usersCollection),
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.favourites.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "homeId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "homeId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("favourites indexes: %w", err)
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateHome inserts a home document.
func (s *Store) CreateHome(ctx context.Context, home store.Home) (store.Home, error) {
	if err := store.Checkpoint(ctx, "create home"); err != nil {
		return store.Home{}, err
	}
	home, err := store.PrepareHome(home)
	if err != nil {
		return store.Home{}, err
	}

	doc := homeDoc{
		ID:          primitive.NewObjectID(),
		HouseName:   home.HouseName,
		Price:       home.Price,
		Location:    home.Location,
		Rating:      home.Rating,
		Photo:       home.Photo,
		Description: home.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.homes.InsertOne(ctx, doc); err != nil {
		return store.Home{}, store.Wrap("create home", fmt.Errorf("insert home: %w", err))
	}

	home.ID = doc.ID.Hex()
	return home, nil
}

// UpdateHome sets every mutable field of an existing document.
func (s *Store) UpdateHome(ctx context.Context, id string, home store.Home) (store.Home, error) {
	if err := store.Checkpoint(ctx, "update home"); err != nil {
		return store.Home{}, err
	}
	home, err := store.PrepareHome(home)
	if err != nil {
		return store.Home{}, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.Home{}, store.ErrHomeNotFound
	}

	res, err := s.homes.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"houseName":   home.HouseName,
		"price":       home.Price,
		"location":    home.Location,
		"rating":      home.Rating,
		"photo":       home.Photo,
		"description": home.Description,
	}})
	if err != nil {
		return store.Home{}, store.Wrap("update home", fmt.Errorf("update home: %w", err))
	}
	if res.MatchedCount == 0 {
		return store.Home{}, store.ErrHomeNotFound
	}

	home.ID = oid.Hex()
	return home, nil
}

// HomeByID loads one home; a malformed id is a miss.
func (s *Store) HomeByID(ctx context.Context, id string) (store.Home, error) {
	if err := store.Checkpoint(ctx, "get home"); err != nil {
		return store.Home{}, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.Home{}, store.ErrHomeNotFound
	}

	var doc homeDoc
	err = s.homes.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Home{}, store.ErrHomeNotFound
	}
	if err != nil {
		return store.Home{}, store.Wrap("get home", fmt.Errorf("find home: %w", err))
	}
	return doc.toHome(), nil
}

// ListHomes returns every home in _id order, which follows insertion.
func (s *Store) ListHomes(ctx context.Context) ([]store.Home, error) {
	if err := store.Checkpoint(ctx, "list homes"); err != nil {
		return nil, err
	}

	cursor, err := s.homes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, store.Wrap("list homes", fmt.Errorf("find homes: %w", err))
	}
	defer cursor.Close(ctx)

	var docs []homeDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, store.Wrap("list homes", fmt.Errorf("decode homes: %w", err))
	}
	homes := make([]store.Home, 0, len(docs))
	for _, d := range docs {
		homes = append(homes, d.toHome())
	}
	return homes, nil
}

// DeleteHome removes the favourites that reference the home before the home
// itself, so an interruption can only leave a home with fewer favourites.
func (s *Store) DeleteHome(ctx context.Context, id string) error {
	if err := store.Checkpoint(ctx, "delete home"); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrHomeNotFound
	}

	if _, err := s.favourites.DeleteMany(ctx, bson.M{"homeId": oid}); err != nil {
		return store.Wrap("delete home", fmt.Errorf("delete favourites: %w", err))
	}
	res, err := s.homes.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return store.Wrap("delete home", fmt.Errorf("delete home: %w", err))
	}
	if res.DeletedCount == 0 {
		return store.ErrHomeNotFound
	}
	return nil
}

// AddFavourite relies on the unique (owner, homeId) index for idempotency.
func (s *Store) AddFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "add favourite"); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(homeID)
	if err != nil {
		return store.ErrHomeNotFound
	}

	_, err = s.favourites.InsertOne(ctx, favouriteDoc{
		ID:        primitive.NewObjectID(),
		Owner:     owner,
		HomeID:    oid,
		CreatedAt: time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrFavouriteExists
	}
	if err != nil {
		return store.Wrap("add favourite", fmt.Errorf("insert favourite: %w", err))
	}
	return nil
}

// RemoveFavourite deletes the pair.
func (s *Store) RemoveFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "remove favourite"); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(homeID)
	if err != nil {
		return store.ErrFavouriteNotFound
	}

	res, err := s.favourites.DeleteOne(ctx, bson.M{"owner": owner, "homeId": oid})
	if err != nil {
		return store.Wrap("remove favourite", fmt.Errorf("delete favourite: %w", err))
	}
	if res.DeletedCount == 0 {
		return store.ErrFavouriteNotFound
	}
	return nil
}

// FavouriteHomeIDs lists the owner's favourites oldest first.
func (s *Store) FavouriteHomeIDs(ctx context.Context, owner string) ([]string, error) {
	if err := store.Checkpoint(ctx, "list favourites"); err != nil {
		return nil, err
	}

	cursor, err := s.favourites.Find(ctx, bson.M{"owner": owner}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, store.Wrap("list favourites", fmt.Errorf("find favourites: %w", err))
	}
	defer cursor.Close(ctx)

	var docs []favouriteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, store.Wrap("list favourites", fmt.Errorf("decode favourites: %w", err))
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.HomeID.Hex())
	}
	return ids, nil
}

// CreateUser inserts an account; the unique email index rejects duplicates.
func (s *Store) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if err := store.Checkpoint(ctx, "create user"); err != nil {
		return store.User{}, err
	}
	user, err := store.PrepareUser(user)
	if err != nil {
		return store.User{}, err
	}

	doc := userDoc{
		ID:           primitive.NewObjectID(),
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		UserType:     user.UserType,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = s.users.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return store.User{}, store.ErrUserExists
	}
	if err != nil {
		return store.User{}, store.Wrap("create user", fmt.Errorf("insert user: %w", err))
	}

	user.ID = doc.ID.Hex()
	return user, nil
}

// UserByEmail loads an account by normalized email.
func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	if err := store.Checkpoint(ctx, "get user"); err != nil {
		return store.User{}, err
	}
	return s.findUser(ctx, bson.M{"email": store.NormalizeEmail(email)})
}

// UserByID loads an account by id.
func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	if err := store.Checkpoint(ctx, "get user"); err != nil {
		return store.User{}, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.User{}, store.ErrUserNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (store.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return store.User{}, store.Wrap("get user", fmt.Errorf("find user: %w", err))
	}
	return store.User{
		ID:           doc.ID.Hex(),
		FirstName:    doc.FirstName,
		LastName:     doc.LastName,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		UserType:     doc.UserType,
	}, nil
}

func (d homeDoc) toHome() store.Home {
	return store.Home{
		ID:          d.ID.Hex(),
		HouseName:   d.HouseName,
		Price:       d.Price,
		Location:    d.Location,
		Rating:      d.Rating,
		Photo:       d.Photo,
		Description: d.Description,
	}
}
