// Package provider mô tả các collection vật lý chứa báo cáo định giá ("provider"):
// handle truy vấn (Store), tên các field đặc thù của từng collection và registry
// có thứ tự ưu tiên cố định.
package provider

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// FindOptions là tham số phân trang / sắp xếp cho Store.Find
type FindOptions struct {
	Skip       int64  // Số document bỏ qua
	Limit      int64  // 0 = không giới hạn
	Sort       bson.D // Thứ tự sắp xếp
	Projection bson.M // nil = lấy toàn bộ document
}

// UpdateResult là kết quả của UpdateMany
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// Store là handle find/update/aggregate trên một collection.
// FindOne trả về common.ErrNotFound khi không có document.
// Mọi lỗi khác đã được chuẩn hóa qua common.ConvertMongoError (hoặc tương đương).
type Store interface {
	Name() string
	FindOne(ctx context.Context, filter bson.M, projection bson.M) (bson.M, error)
	Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error)
	UpdateMany(ctx context.Context, filter bson.M, update bson.M) (UpdateResult, error)
	Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
}
