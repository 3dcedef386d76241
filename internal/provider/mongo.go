package provider

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
)

// MongoStore triển khai Store trên *mongo.Collection
type MongoStore struct {
	collection *mongo.Collection // Collection MongoDB
}

// NewMongoStore tạo mới một MongoStore
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

// Collection trả về collection MongoDB gốc (dùng khi tạo index)
func (s *MongoStore) Collection() *mongo.Collection {
	return s.collection
}

// Name trả về tên collection
func (s *MongoStore) Name() string {
	return s.collection.Name()
}

// FindOne tìm một document theo điều kiện lọc
func (s *MongoStore) FindOne(ctx context.Context, filter bson.M, projection bson.M) (bson.M, error) {
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}

	var doc bson.M
	err := s.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, common.ConvertMongoError(err)
	}
	return doc, nil
}

// Find tìm các document theo điều kiện lọc, có skip/limit/sort
func (s *MongoStore) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error) {
	if filter == nil {
		filter = bson.M{}
	}
	findOpts := options.Find()
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Projection != nil {
		findOpts.SetProjection(opts.Projection)
	}

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(ctx)

	results := []bson.M{}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, common.ConvertMongoError(err)
	}
	return results, nil
}

// UpdateMany cập nhật nhiều document. update là update document đầy đủ ($set, $unset...).
// Không tự thêm updatedAt: caller quyết định, để thao tác set-to-value lặp lại có ModifiedCount = 0.
func (s *MongoStore) UpdateMany(ctx context.Context, filter bson.M, update bson.M) (UpdateResult, error) {
	result, err := s.collection.UpdateMany(ctx, filter, update, options.Update().SetUpsert(false))
	if err != nil {
		return UpdateResult{}, common.ConvertMongoError(err)
	}
	return UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// Aggregate chạy aggregation pipeline và trả về toàn bộ kết quả
func (s *MongoStore) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	cursor, err := s.collection.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(ctx)

	results := []bson.M{}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, common.ConvertMongoError(err)
	}
	return results, nil
}

// CountDocuments đếm chính xác số document khớp filter
func (s *MongoStore) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, common.ConvertMongoError(err)
	}
	return count, nil
}
