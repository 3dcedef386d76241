package reportsvc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
)

func failing(err error) func(ctx context.Context, collection, op string) error {
	return func(context.Context, string, string) error { return err }
}

func TestResolveByExternalID_EachProvider(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	ids := map[string]string{}
	for _, p := range f.reg.List() {
		externalID := "EXT-" + p.Name
		oid := f.insert(p.Name, bson.M{p.ReportIDField: externalID, p.OwnerFields[0]: "u1"})
		ids[externalID] = oid.Hex()
	}

	for _, p := range f.reg.List() {
		externalID := "EXT-" + p.Name
		res, err := f.svc.Resolver.ResolveByExternalID(ctx, externalID)
		require.NoError(t, err, p.Name)
		assert.Equal(t, p.Name, res.Provider.Name)
		assert.Equal(t, ids[externalID], res.Report.ID)
		assert.Equal(t, externalID, res.Report.ExternalID)
	}
}

func TestResolveByExternalID_DuplicatePrefersHigherPriority(t *testing.T) {
	f := newFixture(t, Options{AmbiguityCheck: true})
	ctx := context.Background()

	appLog := logger.GetAppLogger()
	orig := appLog.ReplaceHooks(make(logrus.LevelHooks))
	t.Cleanup(func() { appLog.ReplaceHooks(orig) })
	hook := logtest.NewLocal(appLog)

	first := f.insert(provider.CollectionReports, bson.M{"report_id": "X", "user_id": "owner-a"})
	f.insert(provider.CollectionMultiApproachReports, bson.M{"reportId": "X", "userId": "owner-c"})

	for i := 0; i < 20; i++ {
		res, err := f.svc.Resolver.ResolveByExternalID(ctx, "X")
		require.NoError(t, err)
		assert.Equal(t, provider.CollectionReports, res.Provider.Name)
		assert.Equal(t, first.Hex(), res.Report.ID)
		assert.Equal(t, "owner-a", res.Report.OwnerID)
	}

	var ambiguous []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Data["ambiguous_identity"] == true {
			ambiguous = append(ambiguous, e)
		}
	}
	require.NotEmpty(t, ambiguous)
	assert.Equal(t, logrus.WarnLevel, ambiguous[0].Level)
	assert.Equal(t, provider.CollectionMultiApproachReports, ambiguous[0].Data["other_provider"])
	assert.Equal(t, "owner-c", ambiguous[0].Data["other_owner"])
}

func TestResolveByExternalID_SkipsFailingProvider(t *testing.T) {
	f := newFixture(t, Options{})
	f.coll(provider.CollectionReports).SetHook(failing(errors.New("connection reset")))
	f.insert(provider.CollectionUrgentReports, bson.M{"report_id": "R-1", "user_id": "u1"})

	res, err := f.svc.Resolver.ResolveByExternalID(context.Background(), "R-1")
	require.NoError(t, err)
	assert.Equal(t, provider.CollectionUrgentReports, res.Provider.Name)
}

func TestResolveByExternalID_NotFoundAndInvalid(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Resolver.ResolveByExternalID(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.True(t, IsNotFound(err))

	_, err = f.svc.Resolver.ResolveByExternalID(ctx, "   ")
	assert.True(t, errors.Is(err, common.ErrInvalidIdentifier))
}

func TestResolveByExternalID_AllProvidersFailing(t *testing.T) {
	f := newFixture(t, Options{})
	boom := errors.New("down")
	for _, p := range f.reg.List() {
		f.coll(p.Name).SetHook(failing(boom))
	}

	_, err := f.svc.Resolver.ResolveByExternalID(context.Background(), "R-1")
	assert.True(t, errors.Is(err, common.ErrProviderFailure))
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, common.ErrNotFound))
}

func TestResolveByInternalID_Coercion(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	oid := f.insert(provider.CollectionQuickSubmitReports, bson.M{"report_id": "Q-1", "user_id": "u1"})

	for _, raw := range []string{
		oid.Hex(),
		strings.ToUpper(oid.Hex()),
		`"` + oid.Hex() + `"`,
		`ObjectId("` + oid.Hex() + `")`,
		"  " + oid.Hex() + " ",
	} {
		res, err := f.svc.Resolver.ResolveByInternalID(ctx, raw)
		require.NoError(t, err, raw)
		assert.Equal(t, provider.CollectionQuickSubmitReports, res.Provider.Name)
		assert.Equal(t, "Q-1", res.Report.ExternalID)
	}

	_, err := f.svc.Resolver.ResolveByInternalID(ctx, "not-an-id")
	assert.True(t, errors.Is(err, common.ErrInvalidIdentifier))

	_, err = f.svc.Resolver.ResolveByInternalID(ctx, "650000000000000000000099")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestFindByBatchID_FirstProviderWithBatch(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	// reports không có field batch nên không được xét
	f.insert(provider.CollectionReports, bson.M{"batch_id": "B-1", "report_id": "R0", "user_id": "u1"})
	f.insert(provider.CollectionQuickSubmitReports, bson.M{"batch_id": "B-1", "report_id": "R1", "user_id": "u1"})
	f.insert(provider.CollectionLegacyAssetReports, bson.M{"batch_id": "B-1", "report_id": "R2", "uploaded_by": "u1"})

	p, err := f.svc.Resolver.FindByBatchID(ctx, "B-1")
	require.NoError(t, err)
	assert.Equal(t, provider.CollectionQuickSubmitReports, p.Name)

	_, err = f.svc.Resolver.FindByBatchID(ctx, "B-404")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = f.svc.Resolver.FindByBatchID(ctx, "")
	assert.True(t, errors.Is(err, common.ErrRequiredField))
}

func TestListBatch_Paging(t *testing.T) {
	f := newFixture(t, Options{})
	for i := 0; i < 5; i++ {
		f.insert(provider.CollectionMultiApproachReports, bson.M{"batchId": "MB", "reportId": "", "userId": "u1"})
	}
	f.insert(provider.CollectionMultiApproachReports, bson.M{"batchId": "OTHER", "userId": "u1"})

	page, err := f.svc.Resolver.ListBatch(context.Background(), "MB", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, provider.CollectionMultiApproachReports, page.Provider)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Items, 2)
	for _, r := range page.Items {
		assert.Equal(t, "MB", r.BatchID)
	}

	page, err = f.svc.Resolver.ListBatch(context.Background(), "MB", 3, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}
