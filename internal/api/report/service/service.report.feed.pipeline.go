package reportsvc

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
)

// Tên field của shape chung sau bước normalize
const (
	feedFieldReportID  = "reportId"
	feedFieldTitle     = "title"
	feedFieldOwnerID   = "ownerId"
	feedFieldScopeID   = "scopeId"
	feedFieldStatus    = "status"
	feedFieldCreatedAt = "createdAt"
	feedFieldUpdatedAt = "updatedAt"
	feedFieldProvider  = "provider"

	facetItems = "items"
	facetTotal = "total"
	facetCount = "count"
)

// BuildOwnerMatchStage lọc theo owner (mọi tên field owner của provider) và scope nếu có
func BuildOwnerMatchStage(p *provider.Provider, ownerID, scopeID string) bson.M {
	return bson.M{"$match": p.FeedFilter(ownerID, scopeID)}
}

// BuildNormalizeStage chiếu field riêng của provider về shape chung, gắn tag provider.
// createdAt là khóa sắp xếp: createdAt → updatedAt → thời điểm trong ObjectID, dạng Unix milli.
// Mỗi field thời gian được $convert sang date trước (chuỗi ISO, số milli), giá trị không đổi được coi như null.
func BuildNormalizeStage(p *provider.Provider) bson.M {
	owners := make(bson.A, 0, len(p.OwnerFields)+1)
	for _, f := range p.OwnerFields {
		owners = append(owners, "$"+f)
	}
	owners = append(owners, "")

	sortChain := bson.A{}
	for _, f := range []string{p.CreatedAtField, p.UpdatedAtField} {
		if f != "" {
			sortChain = append(sortChain, toDateExpr(f))
		}
	}
	sortChain = append(sortChain, bson.M{"$toDate": "$_id"})

	updatedAt := interface{}(bson.M{"$literal": nil})
	if p.UpdatedAtField != "" {
		updatedAt = bson.M{"$toLong": toDateExpr(p.UpdatedAtField)}
	}

	return bson.M{"$project": bson.M{
		"_id":              1,
		feedFieldReportID:  fieldOrEmpty(p.ReportIDField),
		feedFieldTitle:     fieldOrEmpty(p.TitleField),
		feedFieldOwnerID:   bson.M{"$toString": bson.M{"$ifNull": owners}},
		feedFieldScopeID:   fieldOrEmpty(p.ScopeField),
		feedFieldStatus:    fieldOrEmpty(p.StatusField),
		feedFieldCreatedAt: bson.M{"$toLong": ifNull(sortChain)},
		feedFieldUpdatedAt: updatedAt,
		feedFieldProvider:  bson.M{"$literal": p.Name},
	}}
}

// BuildUnionStage nối collection của provider vào pipeline, với filter và normalize riêng của nó
func BuildUnionStage(p *provider.Provider, ownerID, scopeID string) bson.M {
	return bson.M{"$unionWith": bson.M{
		"coll": p.Name,
		"pipeline": bson.A{
			BuildOwnerMatchStage(p, ownerID, scopeID),
			BuildNormalizeStage(p),
		},
	}}
}

// BuildSortStage sắp xếp toàn cục: createdAt giảm dần, hòa thì _id giảm dần
func BuildSortStage() bson.M {
	return bson.M{"$sort": bson.D{
		{Key: feedFieldCreatedAt, Value: -1},
		{Key: "_id", Value: -1},
	}}
}

// BuildFacetStage cắt trang và đếm tổng chính xác trong cùng một lượt
func BuildFacetStage(skip, limit int64) bson.M {
	return bson.M{"$facet": bson.M{
		facetItems: bson.A{
			bson.M{"$skip": skip},
			bson.M{"$limit": limit},
		},
		facetTotal: bson.A{
			bson.M{"$count": facetCount},
		},
	}}
}

// BuildFeedPipeline ghép các stage: provider đầu tiên làm gốc, các provider còn lại nối bằng $unionWith
func BuildFeedPipeline(providers []*provider.Provider, ownerID, scopeID string, page, limit int64) []bson.M {
	if len(providers) == 0 {
		return nil
	}
	base := providers[0]
	pipeline := []bson.M{
		BuildOwnerMatchStage(base, ownerID, scopeID),
		BuildNormalizeStage(base),
	}
	for _, p := range providers[1:] {
		pipeline = append(pipeline, BuildUnionStage(p, ownerID, scopeID))
	}
	return append(pipeline,
		BuildSortStage(),
		BuildFacetStage((page-1)*limit, limit),
	)
}

func fieldOrEmpty(field string) interface{} {
	if field == "" {
		return bson.M{"$literal": ""}
	}
	return bson.M{"$ifNull": bson.A{"$" + field, ""}}
}

// toDateExpr đổi field sang date; lỗi hoặc thiếu field trả về null để $ifNull đi tiếp
func toDateExpr(field string) bson.M {
	return bson.M{"$convert": bson.M{
		"input":   "$" + field,
		"to":      "date",
		"onError": nil,
		"onNull":  nil,
	}}
}

func ifNull(chain bson.A) interface{} {
	if len(chain) == 1 {
		return chain[0]
	}
	return bson.M{"$ifNull": chain}
}
