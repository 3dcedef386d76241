package provider

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	reportmodels "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/models"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/utility"
)

// Provider là cấu hình của một collection vật lý chứa báo cáo.
// Mọi khác biệt schema giữa các collection chỉ nằm ở đây; service không tham chiếu tên field trực tiếp.
type Provider struct {
	Name            string   `yaml:"name"`            // Tên collection, đồng thời là tag provider trong kết quả
	Pipeline        string   `yaml:"pipeline"`        // Pipeline nhập liệu tạo ra collection (chỉ để mô tả / log)
	Store           Store    `yaml:"-"`               // Handle truy vấn
	BatchField      string   `yaml:"batchField"`      // Field batch id; rỗng = collection không nhập theo batch
	ReportIDField   string   `yaml:"reportIdField"`   // Field mã báo cáo ngoài
	OwnerFields     []string `yaml:"ownerFields"`     // Các tên field sở hữu, khớp một trong số đó là đủ
	ScopeField      string   `yaml:"scopeField"`      // Field văn phòng / công ty
	TitleField      string   `yaml:"titleField"`      // Field tiêu đề hiển thị
	StatusField     string   `yaml:"statusField"`     // Field trạng thái báo cáo
	AssetsField     string   `yaml:"assetsField"`     // Field mảng tài sản
	AssetStateField string   `yaml:"assetStateField"` // Field submitState trong từng tài sản
	AssetIDField    string   `yaml:"assetIdField"`    // Field id trong từng tài sản (rỗng = "_id")
	CreatedAtField  string   `yaml:"createdAtField"`  // Field thời điểm tạo
	UpdatedAtField  string   `yaml:"updatedAtField"`  // Field thời điểm cập nhật
	Rank            int      `yaml:"-"`               // Thứ tự ưu tiên trong registry, bắt đầu từ 1
}

// HasBatchField cho biết provider có field batch id không
func (p *Provider) HasBatchField() bool {
	return p.BatchField != ""
}

// OwnerValues trả về các dạng giá trị có thể của owner id (chuỗi và ObjectID nếu hợp lệ)
func OwnerValues(ownerID string) []interface{} {
	values := []interface{}{ownerID}
	if oid, ok := utility.CoerceObjectID(ownerID); ok {
		values = append(values, oid)
		if hex := oid.Hex(); hex != ownerID {
			values = append(values, hex)
		}
	}
	return values
}

// OwnerFilter tạo filter sở hữu trên tất cả các tên field owner của provider
func (p *Provider) OwnerFilter(ownerID string) bson.M {
	values := OwnerValues(ownerID)
	clauses := make(bson.A, 0, len(p.OwnerFields))
	for _, f := range p.OwnerFields {
		clauses = append(clauses, bson.M{f: bson.M{"$in": values}})
	}
	if len(clauses) == 1 {
		return clauses[0].(bson.M)
	}
	return bson.M{"$or": clauses}
}

// FeedFilter tạo filter của feed: sở hữu + scope (chỉ khi scopeID được truyền).
// Provider không có field scope thì không khớp document nào khi feed bị giới hạn theo scope.
func (p *Provider) FeedFilter(ownerID, scopeID string) bson.M {
	owner := p.OwnerFilter(ownerID)
	if scopeID == "" {
		return owner
	}
	if p.ScopeField == "" {
		return bson.M{"_id": bson.M{"$exists": false}}
	}
	return bson.M{"$and": bson.A{owner, bson.M{p.ScopeField: scopeID}}}
}

// ExternalIDFilter tạo filter theo mã báo cáo ngoài
func (p *Provider) ExternalIDFilter(externalID string) bson.M {
	return bson.M{p.ReportIDField: externalID}
}

// BatchFilter tạo filter theo batch id
func (p *Provider) BatchFilter(batchID string) bson.M {
	return bson.M{p.BatchField: batchID}
}

// Owner trả về owner id đầu tiên tìm thấy theo thứ tự OwnerFields
func (p *Provider) Owner(doc bson.M) string {
	for _, f := range p.OwnerFields {
		if v, ok := utility.GetPath(doc, f); ok {
			if s := utility.ToString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// Normalize dựng báo cáo logic từ document của provider
func (p *Provider) Normalize(doc bson.M) reportmodels.Report {
	r := reportmodels.Report{
		ID:       utility.IDString(doc["_id"]),
		OwnerID:  p.Owner(doc),
		Provider: p.Name,
		Assets:   []reportmodels.Asset{},
	}
	r.ExternalID = strings.TrimSpace(p.stringField(doc, p.ReportIDField))
	r.BatchID = p.stringField(doc, p.BatchField)
	r.Title = p.stringField(doc, p.TitleField)
	r.ScopeID = p.stringField(doc, p.ScopeField)
	if st, err := reportmodels.ParseStatus(p.stringField(doc, p.StatusField)); err == nil {
		r.Status = st
	}
	r.CreatedAt, _ = p.millisField(doc, p.CreatedAtField)
	r.UpdatedAt, _ = p.millisField(doc, p.UpdatedAtField)

	if raw, ok := utility.GetPath(doc, p.AssetsField); ok {
		idField := p.AssetIDField
		if idField == "" {
			idField = "_id"
		}
		for i, item := range utility.ToSlice(raw) {
			asset := reportmodels.Asset{Position: i}
			if v, ok := utility.GetPath(item, p.AssetStateField); ok {
				asset.SubmitState = reportmodels.ParseSubmitState(v)
			}
			if v, ok := utility.GetPath(item, idField); ok {
				asset.ID = utility.IDString(v)
			}
			r.Assets = append(r.Assets, asset)
		}
	}
	return r
}

// SortKey trả về khóa sắp xếp của document: createdAt → updatedAt → timestamp của ObjectID
func (p *Provider) SortKey(doc bson.M) int64 {
	if ms, ok := p.millisField(doc, p.CreatedAtField); ok {
		return ms
	}
	if ms, ok := p.millisField(doc, p.UpdatedAtField); ok {
		return ms
	}
	if oid, ok := utility.CoerceObjectID(doc["_id"]); ok {
		return oid.Timestamp().UnixMilli()
	}
	return 0
}

// FeedItem chuẩn hóa document thành một dòng feed
func (p *Provider) FeedItem(doc bson.M) reportmodels.FeedItem {
	item := reportmodels.FeedItem{
		ID:         utility.IDString(doc["_id"]),
		ExternalID: p.stringField(doc, p.ReportIDField),
		Title:      p.stringField(doc, p.TitleField),
		OwnerID:    p.Owner(doc),
		ScopeID:    p.stringField(doc, p.ScopeField),
		CreatedAt:  p.SortKey(doc),
		Provider:   p.Name,
	}
	if st, err := reportmodels.ParseStatus(p.stringField(doc, p.StatusField)); err == nil {
		item.Status = st
	}
	item.UpdatedAt, _ = p.millisField(doc, p.UpdatedAtField)
	return item
}

func (p *Provider) stringField(doc bson.M, field string) string {
	if field == "" {
		return ""
	}
	v, _ := utility.GetPath(doc, field)
	return utility.ToString(v)
}

func (p *Provider) millisField(doc bson.M, field string) (int64, bool) {
	if field == "" {
		return 0, false
	}
	v, ok := utility.GetPath(doc, field)
	if !ok {
		return 0, false
	}
	return utility.ToMillis(v)
}
