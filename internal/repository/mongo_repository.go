package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"file-share-bot/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB 集合名，与早期部署的数据保持一致。
const (
	filesCollection    = "files"
	usersCollection    = "users"
	settingsCollection = "settings"
)

type mongoFileRepository struct {
	coll *mongo.Collection
}

// NewMongoFileRepository 创建基于 MongoDB 的 FileRepository。
func NewMongoFileRepository(db *mongo.Database) FileRepository {
	return &mongoFileRepository{coll: db.Collection(filesCollection)}
}

func (r *mongoFileRepository) Put(ctx context.Context, rec *model.FileRecord) (bool, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := r.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *mongoFileRepository) Get(ctx context.Context, id int) (*model.FileRecord, error) {
	var rec model.FileRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *mongoFileRepository) Exists(ctx context.Context, id int) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *mongoFileRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

func (r *mongoFileRepository) Delete(ctx context.Context, id int) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository 创建基于 MongoDB 的 UserRepository。
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection)}
}

func (r *mongoUserRepository) Upsert(ctx context.Context, user *model.BotUser) error {
	update := bson.M{
		"$set":         bson.M{"first_name": user.FirstName, "username": user.Username},
		"$setOnInsert": bson.M{"created_at": time.Now()},
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, update, options.Update().SetUpsert(true))
	return err
}

func (r *mongoUserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *mongoUserRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

func (r *mongoUserRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *mongoUserRepository) Each(ctx context.Context, fn func(model.BotUser) error) error {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetBatchSize(userScanBatch))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u model.BotUser
		if err := cur.Decode(&u); err != nil {
			return fmt.Errorf("failed to decode user: %w", err)
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return cur.Err()
}

type mongoSettingRepository struct {
	coll *mongo.Collection
}

// NewMongoSettingRepository 创建基于 MongoDB 的 SettingRepository。值以原生 BSON 形式保存。
func NewMongoSettingRepository(db *mongo.Database) SettingRepository {
	return &mongoSettingRepository{coll: db.Collection(settingsCollection)}
}

type settingDoc struct {
	Key   string        `bson:"_id"`
	Value bson.RawValue `bson:"value"`
}

func (r *mongoSettingRepository) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	var doc settingDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := doc.Value.Unmarshal(dst); err != nil {
		return false, fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return true, nil
}

func (r *mongoSettingRepository) Set(ctx context.Context, key string, value interface{}) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *mongoSettingRepository) All(ctx context.Context) (map[string]json.RawMessage, error) {
	cur, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make(map[string]json.RawMessage)
	for cur.Next(ctx) {
		var doc settingDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		var v interface{}
		if err := doc.Value.Unmarshal(&v); err != nil {
			return nil, fmt.Errorf("failed to decode setting %s: %w", doc.Key, err)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[doc.Key] = data
	}
	return out, cur.Err()
}
