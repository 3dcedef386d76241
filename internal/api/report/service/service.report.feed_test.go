package reportsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	reportmodels "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/models"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider/memstore"
)

var strategies = []FeedStrategy{FeedStrategyPipeline, FeedStrategyFanout}

type feedRow struct {
	id       string
	at       int64
	provider string
}

func rows(items []reportmodels.FeedItem) []feedRow {
	out := make([]feedRow, 0, len(items))
	for _, it := range items {
		out = append(out, feedRow{id: it.ID, at: it.CreatedAt, provider: it.Provider})
	}
	return out
}

func TestListFeed_MergesAndPagesAcrossProviders(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	a1 := f.insert(provider.CollectionReports, bson.M{"user_id": "u1", "report_id": "A1", "createdAt": primitive.DateTime(1000)})
	a3 := f.insert(provider.CollectionReports, bson.M{"user_id": "u1", "report_id": "A3", "createdAt": primitive.DateTime(3000)})
	b2 := f.insert(provider.CollectionUrgentReports, bson.M{"user_id": "u1", "report_id": "B2", "createdAt": int64(2000)})
	f.insert(provider.CollectionUrgentReports, bson.M{"user_id": "someone-else", "createdAt": int64(5000)})

	for _, st := range strategies {
		t.Run(string(st), func(t *testing.T) {
			page, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Page: 1, Limit: 2, Strategy: st})
			require.NoError(t, err)
			assert.Equal(t, []feedRow{
				{a3.Hex(), 3000, provider.CollectionReports},
				{b2.Hex(), 2000, provider.CollectionUrgentReports},
			}, rows(page.Items))
			assert.Equal(t, "A3", page.Items[0].ExternalID)
			assert.Equal(t, "u1", page.Items[0].OwnerID)

			page, err = f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Page: 2, Limit: 2, Strategy: st})
			require.NoError(t, err)
			assert.Equal(t, []feedRow{{a1.Hex(), 1000, provider.CollectionReports}}, rows(page.Items))
			assert.Equal(t, st, page.Strategy)
		})
	}
}

func TestListFeed_Totals(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		f.insert(provider.CollectionReports, bson.M{"user_id": "u1", "createdAt": int64(100 + i)})
	}
	for i := 0; i < 4; i++ {
		f.insert(provider.CollectionLegacyAssetReports, bson.M{"uploaded_by": "u1", "created_at": int64(200 + i)})
	}

	exact, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Page: 1, Limit: 2, Strategy: FeedStrategyPipeline})
	require.NoError(t, err)
	assert.True(t, exact.Exact)
	assert.Equal(t, int64(11), exact.Total)

	approx, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Page: 1, Limit: 2, Strategy: FeedStrategyFanout})
	require.NoError(t, err)
	assert.False(t, approx.Exact)
	// cap = ceil(2/5) + 2 = 3 dòng mỗi provider
	assert.Equal(t, int64(6), approx.Total)
	assert.GreaterOrEqual(t, approx.Total, int64(len(approx.Items)))
	assert.Equal(t, rows(exact.Items), rows(approx.Items))
}

func TestListFeed_OwnerAcrossFieldNamesAndForms(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	owner := primitive.NewObjectID()

	f.insert(provider.CollectionReports, bson.M{"owner_id": owner.Hex(), "createdAt": int64(1)})
	f.insert(provider.CollectionMultiApproachReports, bson.M{"userId": owner, "createdAt": int64(2)})
	f.insert(provider.CollectionQuickSubmitReports, bson.M{"taqeem_user_id": owner.Hex(), "createdAt": int64(3)})
	f.insert(provider.CollectionLegacyAssetReports, bson.M{"user_id": owner, "created_at": int64(4)})

	for _, st := range strategies {
		page, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: owner.Hex(), Limit: 10, Strategy: st})
		require.NoError(t, err, st)
		require.Len(t, page.Items, 4, st)
		assert.Equal(t, provider.CollectionLegacyAssetReports, page.Items[0].Provider)
		assert.Equal(t, provider.CollectionReports, page.Items[3].Provider)
		for _, it := range page.Items {
			assert.Equal(t, owner.Hex(), it.OwnerID, st)
		}
	}
}

func TestListFeed_ScopeOnlyWhenGiven(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.insert(provider.CollectionReports, bson.M{"user_id": "u1", "company_office_id": "o1", "createdAt": int64(1)})
	f.insert(provider.CollectionUrgentReports, bson.M{"user_id": "u1", "company_office_id": "o2", "createdAt": int64(2)})
	f.insert(provider.CollectionMultiApproachReports, bson.M{"userId": "u1", "companyOfficeId": "o1", "createdAt": int64(3)})

	for _, st := range strategies {
		all, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Strategy: st})
		require.NoError(t, err)
		assert.Len(t, all.Items, 3, st)

		scoped, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", ScopeID: "o1", Strategy: st})
		require.NoError(t, err)
		require.Len(t, scoped.Items, 2, st)
		for _, it := range scoped.Items {
			assert.Equal(t, "o1", it.ScopeID)
		}
	}
}

func TestListFeed_ScopedFeedSkipsProvidersWithoutScopeField(t *testing.T) {
	db := memstore.NewDB()
	defs := provider.Definitions()
	for i := range defs {
		if defs[i].Name == provider.CollectionUrgentReports {
			defs[i].ScopeField = ""
		}
	}
	reg, err := provider.Bind(defs, db.StoreFor)
	require.NoError(t, err)
	svc, err := NewReportService(reg, Options{})
	require.NoError(t, err)

	db.Collection(provider.CollectionReports).Insert(bson.M{"user_id": "u1", "company_office_id": "o1", "createdAt": int64(1)})
	db.Collection(provider.CollectionUrgentReports).Insert(bson.M{"user_id": "u1", "company_office_id": "o1", "createdAt": int64(2)})

	for _, st := range strategies {
		all, err := svc.Feed.ListFeed(context.Background(), FeedQuery{OwnerID: "u1", Strategy: st})
		require.NoError(t, err, st)
		assert.Len(t, all.Items, 2, st)

		scoped, err := svc.Feed.ListFeed(context.Background(), FeedQuery{OwnerID: "u1", ScopeID: "o1", Strategy: st})
		require.NoError(t, err, st)
		require.Len(t, scoped.Items, 1, st)
		assert.Equal(t, provider.CollectionReports, scoped.Items[0].Provider, st)
	}
}

func TestListFeed_SortKeyFallbacksAndTies(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	oidAt := func(sec int64, suffix string) primitive.ObjectID {
		base := primitive.NewObjectIDFromTimestamp(time.Unix(sec, 0)).Hex()[:8]
		return oidHex(t, base+suffix)
	}

	// Không createdAt / updatedAt: dùng thời điểm trong ObjectID (5000s)
	byID := oidAt(5000, "0000000000000001")
	f.insert(provider.CollectionReports, bson.M{"_id": byID, "user_id": "u1"})
	// Chỉ có updatedAt
	byUpdated := oidAt(1, "0000000000000002")
	f.insert(provider.CollectionUrgentReports, bson.M{"_id": byUpdated, "user_id": "u1", "updatedAt": primitive.DateTime(4000 * 1000)})
	// Hòa createdAt: _id lớn hơn đứng trước
	tieLow := oidAt(1, "00000000000000a1")
	tieHigh := oidAt(1, "00000000000000a2")
	f.insert(provider.CollectionReports, bson.M{"_id": tieLow, "user_id": "u1", "createdAt": int64(3000 * 1000)})
	f.insert(provider.CollectionQuickSubmitReports, bson.M{"_id": tieHigh, "user_id": "u1", "createdAt": int64(3000 * 1000)})

	want := []string{byID.Hex(), byUpdated.Hex(), tieHigh.Hex(), tieLow.Hex()}
	for _, st := range strategies {
		page, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Strategy: st})
		require.NoError(t, err)
		var got []string
		for _, it := range page.Items {
			got = append(got, it.ID)
		}
		assert.Equal(t, want, got, st)
		assert.Equal(t, int64(5000*1000), page.Items[0].CreatedAt, st)
	}
}

func TestListFeed_FanoutOmitsFailingAndSlowProviders(t *testing.T) {
	f := newFixture(t, Options{ProviderTimeout: 30 * time.Millisecond})
	ctx := context.Background()
	f.insert(provider.CollectionReports, bson.M{"user_id": "u1", "createdAt": int64(1)})
	f.insert(provider.CollectionUrgentReports, bson.M{"user_id": "u1", "createdAt": int64(2)})
	f.insert(provider.CollectionQuickSubmitReports, bson.M{"user_id": "u1", "createdAt": int64(3)})

	f.coll(provider.CollectionUrgentReports).SetHook(failing(errors.New("boom")))
	f.coll(provider.CollectionQuickSubmitReports).SetHook(func(ctx context.Context, collection, op string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	page, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Strategy: FeedStrategyFanout})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, provider.CollectionReports, page.Items[0].Provider)
	assert.Equal(t, []string{provider.CollectionUrgentReports, provider.CollectionQuickSubmitReports}, page.Omitted)
}

func TestListFeed_FanoutParentCancellationFails(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Strategy: FeedStrategyFanout})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListFeed_PipelineFailureSurfaces(t *testing.T) {
	f := newFixture(t, Options{})
	f.coll(provider.CollectionLegacyAssetReports).SetHook(failing(errors.New("unionWith failed")))

	_, err := f.svc.Feed.ListFeed(context.Background(), FeedQuery{OwnerID: "u1", Strategy: FeedStrategyPipeline})
	assert.True(t, errors.Is(err, common.ErrProviderFailure))
}

func TestListFeed_Validation(t *testing.T) {
	f := newFixture(t, Options{FeedStrategy: FeedStrategyFanout})
	ctx := context.Background()

	_, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: " "})
	assert.True(t, errors.Is(err, common.ErrRequiredField))

	_, err = f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Strategy: "magic"})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	page, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Page: -1, Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, FeedStrategyFanout, page.Strategy)
	assert.Equal(t, int64(1), page.Page)
	assert.Equal(t, MaxPageLimit, page.Limit)
	assert.Empty(t, page.Items)
}

func TestFanoutCap(t *testing.T) {
	assert.Equal(t, int64(12), FanoutCap(1, 10, 5, 0))
	assert.Equal(t, int64(13), FanoutCap(3, 10, 4, 5))
	assert.Equal(t, int64(3), FanoutCap(1, 2, 5, 0))
}

func TestBuildFeedPipeline_Shape(t *testing.T) {
	f := newFixture(t, Options{})
	providers := f.reg.List()

	pipeline := BuildFeedPipeline(providers, "u1", "o1", 3, 20)
	require.Len(t, pipeline, 2+len(providers)-1+2)

	assert.Equal(t, BuildOwnerMatchStage(providers[0], "u1", "o1"), pipeline[0])
	assert.Equal(t, BuildNormalizeStage(providers[0]), pipeline[1])
	for i, p := range providers[1:] {
		union := pipeline[2+i]["$unionWith"].(bson.M)
		assert.Equal(t, p.Name, union["coll"])
	}
	assert.Equal(t, BuildSortStage(), pipeline[len(pipeline)-2])
	assert.Equal(t, BuildFacetStage(40, 20), pipeline[len(pipeline)-1])

	assert.Nil(t, BuildFeedPipeline(nil, "u1", "", 1, 10))
}

func TestListFeed_StringTimestampsOrderTheSameInBothStrategies(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	iso := f.insert(provider.CollectionReports, bson.M{"user_id": "u1", "createdAt": "2024-05-01T00:00:00Z"})
	older := f.insert(provider.CollectionUrgentReports, bson.M{"user_id": "u1", "createdAt": primitive.NewDateTimeFromTime(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))})

	for _, st := range strategies {
		page, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Page: 1, Limit: 10, Strategy: st})
		require.NoError(t, err, st)
		assert.Equal(t, []feedRow{
			{iso.Hex(), 1714521600000, provider.CollectionReports},
			{older.Hex(), 1711929600000, provider.CollectionUrgentReports},
		}, rows(page.Items), st)
	}
}

func TestListFeed_MixedTimestampTypesOnlyPipelineOrdersExactly(t *testing.T) {
	f := newFixture(t, Options{FanoutSlack: 1})
	ctx := context.Background()
	at := func(month time.Month) primitive.DateTime {
		return primitive.NewDateTimeFromTime(time.Date(2024, month, 1, 0, 0, 0, 0, time.UTC))
	}

	f.insert(provider.CollectionReports, bson.M{"user_id": "u1", "createdAt": at(time.January)})
	feb := f.insert(provider.CollectionReports, bson.M{"user_id": "u1", "createdAt": at(time.February)})
	june := f.insert(provider.CollectionReports, bson.M{"user_id": "u1", "createdAt": "2024-06-01T00:00:00Z"})

	// cap = ceil(1/5) + 1 = 2
	require.Equal(t, int64(2), FanoutCap(1, 1, f.reg.Len(), 1))

	exact, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Page: 1, Limit: 1, Strategy: FeedStrategyPipeline})
	require.NoError(t, err)
	require.Len(t, exact.Items, 1)
	assert.Equal(t, june.Hex(), exact.Items[0].ID)
	assert.True(t, exact.Exact)
	assert.Equal(t, int64(3), exact.Total)

	// Date xếp trên String theo kiểu BSON nên hai bản ghi Date chiếm hết cap của provider
	approx, err := f.svc.Feed.ListFeed(ctx, FeedQuery{OwnerID: "u1", Page: 1, Limit: 1, Strategy: FeedStrategyFanout})
	require.NoError(t, err)
	require.Len(t, approx.Items, 1)
	assert.Equal(t, feb.Hex(), approx.Items[0].ID)
	assert.False(t, approx.Exact)
	assert.Equal(t, int64(2), approx.Total)
}

func TestBuildNormalizeStage_ProjectsProviderFields(t *testing.T) {
	f := newFixture(t, Options{})
	p, _ := f.reg.Get(provider.CollectionLegacyAssetReports)

	project := BuildNormalizeStage(p)["$project"].(bson.M)
	assert.Equal(t, bson.M{"$ifNull": bson.A{"$client_name", ""}}, project["title"])
	assert.Equal(t, bson.M{"$ifNull": bson.A{"$office_id", ""}}, project["scopeId"])
	assert.Equal(t, bson.M{"$literal": provider.CollectionLegacyAssetReports}, project["provider"])
	assert.Equal(t, bson.M{"$toString": bson.M{"$ifNull": bson.A{"$uploaded_by", "$user_id", ""}}}, project["ownerId"])
	assert.Equal(t, bson.M{"$toLong": bson.M{"$ifNull": bson.A{
		toDateExpr("created_at"),
		toDateExpr("updated_at"),
		bson.M{"$toDate": "$_id"},
	}}}, project["createdAt"])
	assert.Equal(t, bson.M{"$toLong": toDateExpr("updated_at")}, project["updatedAt"])
}

func TestBuildSortStage_IsOrdered(t *testing.T) {
	sortSpec := BuildSortStage()["$sort"].(bson.D)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, sortSpec)
}
