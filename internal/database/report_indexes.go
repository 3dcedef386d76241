// Package database - kết nối MongoDB và index cho các collection báo cáo.
package database

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
)

// ReportIndexModels trả về các index cần cho một provider:
// mã báo cáo ngoài (resolver), batch id (batch update), owner + createdAt (feed), scope (feed có lọc).
func ReportIndexModels(p *provider.Provider) []mongo.IndexModel {
	prefix := p.Name + "_"
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: p.ReportIDField, Value: 1}},
			Options: options.Index().SetName(prefix + "report_id").SetSparse(true),
		},
	}

	if p.HasBatchField() {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: p.BatchField, Value: 1}},
			Options: options.Index().SetName(prefix + "batch").SetSparse(true),
		})
	}

	for _, owner := range p.OwnerFields {
		keys := bson.D{{Key: owner, Value: 1}}
		if p.CreatedAtField != "" {
			keys = append(keys, bson.E{Key: p.CreatedAtField, Value: -1})
		}
		models = append(models, mongo.IndexModel{
			Keys:    keys,
			Options: options.Index().SetName(prefix + "owner_" + owner),
		})
	}

	if p.ScopeField != "" {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: p.ScopeField, Value: 1}},
			Options: options.Index().SetName(prefix + "scope").SetSparse(true),
		})
	}
	return models
}

// CreateReportIndexes tạo index cho mọi provider trong registry.
// Index đã tồn tại (cùng tên hoặc cùng key) được bỏ qua.
func CreateReportIndexes(ctx context.Context, db *mongo.Database, providers []*provider.Provider) error {
	log := logger.GetAppLogger()
	for _, p := range providers {
		coll := db.Collection(p.Name)
		for _, model := range ReportIndexModels(p) {
			if _, err := coll.Indexes().CreateOne(ctx, model); err != nil && !isIndexExistsError(err) {
				return fmt.Errorf("create index on %s: %w", p.Name, err)
			}
		}
		log.WithField("collection", p.Name).Debug("Đã đảm bảo index cho collection báo cáo")
	}
	return nil
}

func isIndexExistsError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "already exists") || strings.Contains(s, "duplicate")
}
