package repositories

import (
	"context"
	"errors"
	"regexp"

	"goodmoments/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoPostStore struct {
	posts *mongo.Collection
}

func NewMongoPostStore(posts *mongo.Collection) *MongoPostStore {
	return &MongoPostStore{posts: posts}
}

func (s *MongoPostStore) Create(ctx context.Context, post *models.Post) error {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	post.EnsureSlices()
	_, err := s.posts.InsertOne(ctx, post)
	return err
}

func (s *MongoPostStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	post.EnsureSlices()
	return &post, nil
}

func (s *MongoPostStore) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Post, error) {
	cursor, err := s.posts.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].EnsureSlices()
	}
	return posts, nil
}

// newestFirst sorts by _id descending; ObjectIDs lead with their creation
// time.
func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
}

func (s *MongoPostStore) List(ctx context.Context, skip, limit int64) ([]models.Post, int64, error) {
	total, err := s.posts.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, err
	}
	opts := newestFirst().
		SetSkip(skip).
		SetLimit(limit)
	posts, err := s.find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func searchFilter(q PostQuery) bson.M {
	var clauses []bson.M
	if q.TitleContains != "" {
		clauses = append(clauses, bson.M{"title": primitive.Regex{
			Pattern: regexp.QuoteMeta(q.TitleContains),
			Options: "i",
		}})
	}
	if len(q.Tags) > 0 {
		clauses = append(clauses, bson.M{"tags": bson.M{"$in": q.Tags}})
	}
	switch len(clauses) {
	case 0:
		return bson.M{}
	case 1:
		return clauses[0]
	default:
		return bson.M{"$or": clauses}
	}
}

func (s *MongoPostStore) Search(ctx context.Context, q PostQuery) ([]models.Post, error) {
	return s.find(ctx, searchFilter(q), newestFirst())
}

func (s *MongoPostStore) FindByCreatorName(ctx context.Context, name string) ([]models.Post, error) {
	return s.find(ctx, bson.M{"name": name}, newestFirst())
}

func (s *MongoPostStore) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update interface{}) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var post models.Post
	err := s.posts.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	post.EnsureSlices()
	return &post, nil
}

func (s *MongoPostStore) Update(ctx context.Context, id primitive.ObjectID, changes PostChanges) (*models.Post, error) {
	tags := changes.Tags
	if tags == nil {
		tags = []string{}
	}
	update := bson.M{"$set": bson.M{
		"title":        changes.Title,
		"message":      changes.Message,
		"tags":         tags,
		"selectedFile": changes.SelectedFile,
	}}
	return s.findOneAndUpdate(ctx, id, update)
}

func (s *MongoPostStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// op builds a single-field document such as {$in: [...]}.
func op(key string, value interface{}) bson.D {
	return bson.D{{Key: key, Value: value}}
}

// ToggleLike runs as a single pipeline update so concurrent likes on the
// same post cannot overwrite each other.
func (s *MongoPostStore) ToggleLike(ctx context.Context, id primitive.ObjectID, userID string) (*models.Post, error) {
	likes := op("$ifNull", bson.A{"$likes", bson.A{}})
	toggled := op("$cond", bson.A{
		op("$in", bson.A{userID, likes}),
		op("$filter", bson.D{
			{Key: "input", Value: likes},
			{Key: "cond", Value: op("$ne", bson.A{"$$this", userID})},
		}),
		op("$concatArrays", bson.A{likes, bson.A{userID}}),
	})
	update := mongo.Pipeline{op("$set", op("likes", toggled))}
	return s.findOneAndUpdate(ctx, id, update)
}

func (s *MongoPostStore) AppendComment(ctx context.Context, id primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	normalized := op("$map", bson.D{
		{Key: "input", Value: op("$ifNull", bson.A{"$comments", bson.A{}})},
		{Key: "as", Value: "c"},
		{Key: "in", Value: op("$cond", bson.A{
			op("$eq", bson.A{op("$type", "$$c"), "string"}),
			legacyCommentExpr("$$c"),
			"$$c",
		})},
	})
	appended := op("$concatArrays", bson.A{
		normalized,
		bson.A{op("$literal", comment)},
	})
	update := mongo.Pipeline{op("$set", op("comments", appended))}
	return s.findOneAndUpdate(ctx, id, update)
}

// legacyCommentExpr is the aggregation form of models.ParseLegacyComment.
func legacyCommentExpr(v string) bson.D {
	sep := models.LegacyCommentSeparator
	return op("$let", bson.D{
		{Key: "vars", Value: op("idx", op("$indexOfCP", bson.A{v, sep}))},
		{Key: "in", Value: op("$cond", bson.A{
			op("$lt", bson.A{"$$idx", 0}),
			bson.D{
				{Key: "comment", Value: v},
				{Key: "user", Value: op("$literal", "")},
			},
			bson.D{
				{Key: "comment", Value: op("$substrCP", bson.A{
					v,
					op("$add", bson.A{"$$idx", len(sep)}),
					op("$strLenCP", v),
				})},
				{Key: "user", Value: op("$substrCP", bson.A{v, 0, "$$idx"})},
			},
		})},
	})
}
