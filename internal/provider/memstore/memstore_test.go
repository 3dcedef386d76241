package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
)

func TestFindOne_NotFound(t *testing.T) {
	c := NewDB().Collection("reports")
	_, err := c.FindOne(context.Background(), bson.M{"report_id": "X"}, nil)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestMatches_Operators(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := bson.M{
		"user_id": oid,
		"office":  "o-1",
		"n":       int32(5),
		"tags":    bson.A{"a", "b"},
		"nested":  bson.M{"k": "v"},
	}

	assert.True(t, Matches(doc, bson.M{"user_id": bson.M{"$in": bson.A{"x", oid}}}))
	assert.False(t, Matches(doc, bson.M{"user_id": bson.M{"$in": bson.A{oid.Hex()}}}))
	assert.True(t, Matches(doc, bson.M{"n": int64(5)}))
	assert.True(t, Matches(doc, bson.M{"n": bson.M{"$gte": 5, "$lt": 6.5}}))
	assert.True(t, Matches(doc, bson.M{"tags": "b"}))
	assert.True(t, Matches(doc, bson.M{"nested.k": "v"}))
	assert.True(t, Matches(doc, bson.M{"missing": bson.M{"$exists": false}}))
	assert.True(t, Matches(doc, bson.M{"missing": bson.M{"$nin": bson.A{"a"}}}))
	assert.True(t, Matches(doc, bson.M{"office": bson.M{"$ne": "o-2"}}))
	assert.True(t, Matches(doc, bson.M{"$or": bson.A{bson.M{"office": "zz"}, bson.M{"office": "o-1"}}}))
	assert.False(t, Matches(doc, bson.M{"$and": bson.A{bson.M{"office": "o-1"}, bson.M{"n": 6}}}))
}

func TestUpdateMany_CountsOnlyRealChanges(t *testing.T) {
	ctx := context.Background()
	c := NewDB().Collection("urgent_reports")
	c.Insert(
		bson.M{"batch_id": "B1", "city": "Riyadh"},
		bson.M{"batch_id": "B1", "city": "Jeddah"},
		bson.M{"batch_id": "B2", "city": "Jeddah"},
	)

	res, err := c.UpdateMany(ctx, bson.M{"batch_id": "B1"}, bson.M{"$set": bson.M{"city": "Jeddah"}})
	require.NoError(t, err)
	assert.Equal(t, provider.UpdateResult{MatchedCount: 2, ModifiedCount: 1}, res)

	res, err = c.UpdateMany(ctx, bson.M{"batch_id": "B1"}, bson.M{"$set": bson.M{"city": "Jeddah"}})
	require.NoError(t, err)
	assert.Equal(t, provider.UpdateResult{MatchedCount: 2, ModifiedCount: 0}, res)

	_, err = c.UpdateMany(ctx, bson.M{}, bson.M{"$inc": bson.M{"n": 1}})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestFind_SortSkipLimit(t *testing.T) {
	c := NewDB().Collection("reports")
	for i := 1; i <= 5; i++ {
		c.Insert(bson.M{"n": i})
	}
	docs, err := c.Find(context.Background(), bson.M{}, provider.FindOptions{
		Sort:  bson.D{{Key: "n", Value: -1}},
		Skip:  1,
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 4, docs[0]["n"])
	assert.Equal(t, 3, docs[1]["n"])
}

func TestAggregate_UnionFacetCount(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	a := db.Collection("a")
	b := db.Collection("b")
	a.Insert(bson.M{"owner": "u1", "ts": int64(100)}, bson.M{"owner": "u2", "ts": int64(300)})
	b.Insert(bson.M{"uid": "u1", "created": primitive.DateTime(200)})

	pipeline := []bson.M{
		{"$match": bson.M{"owner": "u1"}},
		{"$project": bson.M{"_id": 1, "sortKey": bson.M{"$toLong": "$ts"}, "source": bson.M{"$literal": "a"}}},
		{"$unionWith": bson.M{"coll": "b", "pipeline": bson.A{
			bson.M{"$match": bson.M{"uid": "u1"}},
			bson.M{"$project": bson.M{"_id": 1, "sortKey": bson.M{"$toLong": "$created"}, "source": bson.M{"$literal": "b"}}},
		}}},
		{"$sort": bson.D{{Key: "sortKey", Value: -1}}},
		{"$facet": bson.M{
			"items": bson.A{bson.M{"$skip": 0}, bson.M{"$limit": 10}},
			"total": bson.A{bson.M{"$count": "count"}},
		}},
	}
	out, err := a.Aggregate(ctx, pipeline)
	require.NoError(t, err)
	require.Len(t, out, 1)

	items := out[0]["items"].(bson.A)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].(bson.M)["source"])
	assert.Equal(t, int64(200), items[0].(bson.M)["sortKey"])
	assert.Equal(t, "a", items[1].(bson.M)["source"])

	total := out[0]["total"].(bson.A)
	require.Len(t, total, 1)
	assert.Equal(t, int32(2), total[0].(bson.M)["count"])
}

func TestAggregate_CountOnEmptyInputReturnsNoDocument(t *testing.T) {
	c := NewDB().Collection("a")
	out, err := c.Aggregate(context.Background(), []bson.M{{"$count": "count"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEval_IfNullAndToDate(t *testing.T) {
	oid := primitive.NewObjectIDFromTimestamp(time.Unix(1700000000, 0))
	doc := bson.M{"_id": oid, "updatedAt": nil}

	v, err := Eval(doc, bson.M{"$toLong": bson.M{"$ifNull": bson.A{"$createdAt", "$updatedAt", bson.M{"$toDate": "$_id"}}}})
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), v)

	v, err = Eval(doc, bson.M{"$toString": "$_id"})
	require.NoError(t, err)
	assert.Equal(t, oid.Hex(), v)

	v, err = Eval(doc, "$missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEval_ConvertToDate(t *testing.T) {
	conv := func(field string) bson.M {
		return bson.M{"$convert": bson.M{"input": "$" + field, "to": "date", "onError": nil, "onNull": nil}}
	}
	doc := bson.M{
		"iso":   "2024-05-01T00:00:00Z",
		"ms":    int64(1500),
		"bad":   "not a date",
		"small": int32(7),
	}
	eval := func(expr interface{}) interface{} {
		v, err := Eval(doc, expr)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, primitive.NewDateTimeFromTime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), eval(conv("iso")))
	assert.Equal(t, primitive.DateTime(1500), eval(conv("ms")))
	assert.Nil(t, eval(conv("bad")))
	assert.Nil(t, eval(conv("small")))
	assert.Nil(t, eval(conv("missing")))
	assert.Equal(t, int64(1714521600000), eval(bson.M{"$toLong": conv("iso")}))
	assert.Equal(t, int64(42), eval(bson.M{"$toLong": "42"}))

	// Không có onError thì lỗi chuyển kiểu được trả về
	_, err := Eval(doc, bson.M{"$convert": bson.M{"input": "$bad", "to": "date"}})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestEval_ToLongRejectsNonNumericString(t *testing.T) {
	_, err := Eval(bson.M{"iso": "2024-05-01T00:00:00Z"}, bson.M{"$toLong": "$iso"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	v, err := Eval(bson.M{}, bson.M{"$toLong": "$missing"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAggregate_ConversionErrorFailsPipeline(t *testing.T) {
	c := NewDB().Collection("a")
	c.Insert(bson.M{"createdAt": "2024-05-01T00:00:00Z"})

	_, err := c.Aggregate(context.Background(), []bson.M{
		{"$project": bson.M{"sortKey": bson.M{"$toLong": "$createdAt"}}},
	})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestHook_InjectsFailureIntoUnion(t *testing.T) {
	db := NewDB()
	db.Collection("a").Insert(bson.M{"x": 1})
	boom := errors.New("boom")
	db.Collection("b").SetHook(func(ctx context.Context, collection, op string) error {
		return boom
	})

	_, err := db.Collection("a").Aggregate(context.Background(), []bson.M{
		{"$unionWith": bson.M{"coll": "b", "pipeline": bson.A{}}},
	})
	assert.ErrorIs(t, err, boom)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDB().Collection("a").CountDocuments(ctx, bson.M{})
	assert.ErrorIs(t, err, context.Canceled)
}
