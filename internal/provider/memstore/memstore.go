// Package memstore là Store trong bộ nhớ cho test và chạy local (STORE_DRIVER=memory).
// Nó hiểu tập con filter / update / aggregation mà các service báo cáo sinh ra:
// so sánh bằng, $in, $nin, $ne, $eq, $exists, $gt(e), $lt(e), $or, $and; update $set, $unset;
// pipeline $match, $project, $addFields, $unionWith, $sort, $skip, $limit, $facet, $count;
// biểu thức $literal, $ifNull, $toLong, $toDate, $toString, $convert (sang date).
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/utility"
)

// Hook được gọi trước mỗi thao tác; trả lỗi để giả lập provider lỗi hoặc chậm.
type Hook func(ctx context.Context, collection, op string) error

// DB là tập các collection trong bộ nhớ, dùng chung để $unionWith tìm theo tên
type DB struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

// NewDB tạo DB rỗng
func NewDB() *DB {
	return &DB{collections: make(map[string]*Collection)}
}

// Collection trả về collection theo tên, tạo mới nếu chưa có
func (db *DB) Collection(name string) *Collection {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.collections[name]
	if !ok {
		c = &Collection{db: db, name: name}
		db.collections[name] = c
	}
	return c
}

// StoreFor dùng được làm tham số của provider.Bind
func (db *DB) StoreFor(collection string) (provider.Store, error) {
	return db.Collection(collection), nil
}

// Collection là một collection trong bộ nhớ, triển khai provider.Store
type Collection struct {
	db   *DB
	name string
	mu   sync.RWMutex
	docs []bson.M
	hook Hook
}

var _ provider.Store = (*Collection)(nil)

// SetHook gắn hook cho collection (nil = bỏ hook)
func (c *Collection) SetHook(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hook = h
}

// Insert thêm documents, gán _id mới nếu thiếu, trả về các _id
func (c *Collection) Insert(docs ...bson.M) []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		cp := deepCopy(d).(bson.M)
		if _, ok := cp["_id"]; !ok {
			cp["_id"] = primitive.NewObjectID()
		}
		c.docs = append(c.docs, cp)
		ids = append(ids, cp["_id"])
	}
	return ids
}

// Docs trả về bản sao các document theo thứ tự chèn
func (c *Collection) Docs() []bson.M {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.docs)
}

// Name trả về tên collection
func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) before(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	h := c.hook
	c.mu.RUnlock()
	if h != nil {
		return h(ctx, c.name, op)
	}
	return nil
}

// FindOne tìm document đầu tiên khớp filter
func (c *Collection) FindOne(ctx context.Context, filter bson.M, projection bson.M) (bson.M, error) {
	if err := c.before(ctx, "findOne"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.docs {
		if Matches(d, filter) {
			return project(deepCopy(d).(bson.M), projection)
		}
	}
	return nil, common.ErrNotFound
}

// Find tìm các document khớp filter với sort/skip/limit
func (c *Collection) Find(ctx context.Context, filter bson.M, opts provider.FindOptions) ([]bson.M, error) {
	if err := c.before(ctx, "find"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	var out []bson.M
	for _, d := range c.docs {
		if Matches(d, filter) {
			out = append(out, deepCopy(d).(bson.M))
		}
	}
	c.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sortDocs(out, opts.Sort)
	}
	out = window(out, opts.Skip, opts.Limit)
	for i := range out {
		pd, err := project(out[i], opts.Projection)
		if err != nil {
			return nil, err
		}
		out[i] = pd
	}
	if out == nil {
		out = []bson.M{}
	}
	return out, nil
}

// CountDocuments đếm document khớp filter
func (c *Collection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	if err := c.before(ctx, "count"); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, d := range c.docs {
		if Matches(d, filter) {
			n++
		}
	}
	return n, nil
}

// UpdateMany áp dụng $set / $unset cho mọi document khớp filter.
// ModifiedCount chỉ đếm document thực sự thay đổi giá trị.
func (c *Collection) UpdateMany(ctx context.Context, filter bson.M, update bson.M) (provider.UpdateResult, error) {
	if err := c.before(ctx, "updateMany"); err != nil {
		return provider.UpdateResult{}, err
	}
	for op := range update {
		if op != "$set" && op != "$unset" {
			return provider.UpdateResult{}, fmt.Errorf("memstore: update operator %s không được hỗ trợ: %w", op, common.ErrInvalidInput)
		}
	}
	set, _ := asM(update["$set"])
	unset, _ := asM(update["$unset"])

	c.mu.Lock()
	defer c.mu.Unlock()
	var res provider.UpdateResult
	for _, d := range c.docs {
		if !Matches(d, filter) {
			continue
		}
		res.MatchedCount++
		changed := false
		for k, v := range set {
			old, ok := utility.GetPath(d, k)
			if !ok || !Equal(old, v) {
				setPath(d, k, deepCopy(v))
				changed = true
			}
		}
		for k := range unset {
			if unsetPath(d, k) {
				changed = true
			}
		}
		if changed {
			res.ModifiedCount++
		}
	}
	return res, nil
}

// Aggregate chạy pipeline trên collection
func (c *Collection) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	if err := c.before(ctx, "aggregate"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	docs := cloneAll(c.docs)
	c.mu.RUnlock()

	out, err := c.db.run(ctx, docs, pipeline)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []bson.M{}
	}
	return out, nil
}

// ====================================
// AGGREGATION
// ====================================

func (db *DB) run(ctx context.Context, docs []bson.M, pipeline []bson.M) ([]bson.M, error) {
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("memstore: stage phải có đúng một operator: %v: %w", stage, common.ErrInvalidInput)
		}
		for op, arg := range stage {
			var err error
			docs, err = db.applyStage(ctx, docs, op, arg)
			if err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

func (db *DB) applyStage(ctx context.Context, docs []bson.M, op string, arg interface{}) ([]bson.M, error) {
	switch op {
	case "$match":
		filter, _ := asM(arg)
		var out []bson.M
		for _, d := range docs {
			if Matches(d, filter) {
				out = append(out, d)
			}
		}
		return out, nil

	case "$project", "$addFields":
		spec, _ := asM(arg)
		out := make([]bson.M, 0, len(docs))
		for _, d := range docs {
			if op == "$addFields" {
				nd := deepCopy(d).(bson.M)
				for k, expr := range spec {
					v, err := Eval(d, expr)
					if err != nil {
						return nil, err
					}
					setPath(nd, k, v)
				}
				out = append(out, nd)
				continue
			}
			pd, err := projectExpr(d, spec)
			if err != nil {
				return nil, err
			}
			out = append(out, pd)
		}
		return out, nil

	case "$unionWith":
		spec, ok := asM(arg)
		if !ok {
			return nil, fmt.Errorf("memstore: $unionWith cần {coll, pipeline}: %w", common.ErrInvalidInput)
		}
		name, _ := spec["coll"].(string)
		sub, err := stages(spec["pipeline"])
		if err != nil {
			return nil, err
		}
		other, err := db.Collection(name).Aggregate(ctx, sub)
		if err != nil {
			return nil, err
		}
		return append(docs, other...), nil

	case "$sort":
		keys, ok := arg.(bson.D)
		if !ok {
			return nil, fmt.Errorf("memstore: $sort cần bson.D để giữ thứ tự khóa: %w", common.ErrInvalidInput)
		}
		sortDocs(docs, keys)
		return docs, nil

	case "$skip":
		n, _ := utility.ToMillis(arg)
		return window(docs, n, 0), nil

	case "$limit":
		n, _ := utility.ToMillis(arg)
		return window(docs, 0, n), nil

	case "$count":
		name, _ := arg.(string)
		if len(docs) == 0 {
			return nil, nil
		}
		return []bson.M{{name: int32(len(docs))}}, nil

	case "$facet":
		spec, _ := asM(arg)
		res := bson.M{}
		for name, p := range spec {
			sub, err := stages(p)
			if err != nil {
				return nil, err
			}
			out, err := db.run(ctx, cloneAll(docs), sub)
			if err != nil {
				return nil, err
			}
			arr := make(bson.A, 0, len(out))
			for _, d := range out {
				arr = append(arr, d)
			}
			res[name] = arr
		}
		return []bson.M{res}, nil
	}
	return nil, fmt.Errorf("memstore: stage %s không được hỗ trợ: %w", op, common.ErrInvalidInput)
}

func stages(v interface{}) ([]bson.M, error) {
	switch p := v.(type) {
	case []bson.M:
		return p, nil
	case nil:
		return nil, nil
	}
	var out []bson.M
	for _, s := range utility.ToSlice(v) {
		m, ok := asM(s)
		if !ok {
			return nil, fmt.Errorf("memstore: stage không hợp lệ %v: %w", s, common.ErrInvalidInput)
		}
		out = append(out, m)
	}
	return out, nil
}

func projectExpr(doc bson.M, spec bson.M) (bson.M, error) {
	out := bson.M{}
	includeID := true
	for k, expr := range spec {
		if k == "_id" && isFalsy(expr) {
			includeID = false
			continue
		}
		if isTruthyFlag(expr) {
			if v, ok := utility.GetPath(doc, k); ok {
				setPath(out, k, v)
			}
			continue
		}
		v, err := Eval(doc, expr)
		if err != nil {
			return nil, err
		}
		setPath(out, k, v)
	}
	if _, set := out["_id"]; includeID && !set {
		if id, ok := doc["_id"]; ok {
			out["_id"] = id
		}
	}
	return out, nil
}

func project(doc bson.M, projection bson.M) (bson.M, error) {
	if len(projection) == 0 {
		return doc, nil
	}
	return projectExpr(doc, projection)
}

func isTruthyFlag(v interface{}) bool {
	switch f := v.(type) {
	case bool:
		return f
	case int:
		return f == 1
	case int32:
		return f == 1
	case int64:
		return f == 1
	}
	return false
}

func isFalsy(v interface{}) bool {
	switch f := v.(type) {
	case bool:
		return !f
	case int:
		return f == 0
	case int32:
		return f == 0
	case int64:
		return f == 0
	}
	return false
}

// Eval tính một aggregation expression trên document.
// Lỗi chuyển kiểu được trả về như server (ví dụ $toLong trên chuỗi không phải số).
func Eval(doc bson.M, expr interface{}) (interface{}, error) {
	switch e := expr.(type) {
	case string:
		if strings.HasPrefix(e, "$") && !strings.HasPrefix(e, "$$") {
			v, _ := utility.GetPath(doc, e[1:])
			return v, nil
		}
		return e, nil
	case bson.A, []interface{}:
		items := utility.ToSlice(e)
		out := make(bson.A, len(items))
		for i, it := range items {
			v, err := Eval(doc, it)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	m, ok := asM(expr)
	if !ok {
		return expr, nil
	}
	if len(m) == 1 {
		for op, arg := range m {
			if strings.HasPrefix(op, "$") {
				return evalOperator(doc, op, arg)
			}
		}
	}
	out := bson.M{}
	for k, v := range m {
		ev, err := Eval(doc, v)
		if err != nil {
			return nil, err
		}
		out[k] = ev
	}
	return out, nil
}

func evalOperator(doc bson.M, op string, arg interface{}) (interface{}, error) {
	if op == "$literal" {
		return arg, nil
	}
	if op == "$ifNull" {
		args := utility.ToSlice(arg)
		for i, a := range args {
			v, err := Eval(doc, a)
			if err != nil {
				return nil, err
			}
			if v != nil || i == len(args)-1 {
				return v, nil
			}
		}
		return nil, nil
	}
	if op == "$convert" {
		return evalConvert(doc, arg)
	}

	v, err := Eval(doc, arg)
	if err != nil || v == nil {
		return nil, err
	}
	switch op {
	case "$toLong":
		if s, ok := v.(string); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, conversionError(op, v)
			}
			return n, nil
		}
		if ms, ok := utility.ToMillis(v); ok {
			return ms, nil
		}
		return nil, conversionError(op, v)
	case "$toDate":
		if d, ok := toDate(v); ok {
			return d, nil
		}
		return nil, conversionError(op, v)
	case "$toString":
		return utility.ToString(v), nil
	}
	return nil, fmt.Errorf("memstore: expression %s không được hỗ trợ: %w", op, common.ErrInvalidInput)
}

// evalConvert hỗ trợ $convert sang date với onError / onNull
func evalConvert(doc bson.M, arg interface{}) (interface{}, error) {
	spec, ok := asM(arg)
	if !ok {
		return nil, fmt.Errorf("memstore: $convert cần {input, to}: %w", common.ErrInvalidInput)
	}
	v, err := Eval(doc, spec["input"])
	if err != nil {
		return nil, err
	}
	if v == nil {
		return Eval(doc, spec["onNull"])
	}
	if to, _ := spec["to"].(string); to == "date" {
		if d, ok := toDate(v); ok {
			return d, nil
		}
	}
	if onError, set := spec["onError"]; set {
		return Eval(doc, onError)
	}
	return nil, conversionError("$convert", v)
}

func conversionError(op string, v interface{}) error {
	return fmt.Errorf("memstore: %s không đổi được giá trị %v (%T): %w", op, v, v, common.ErrInvalidInput)
}

// toDate theo quy tắc $convert sang date: date, số long/double (milli), chuỗi ISO
func toDate(v interface{}) (primitive.DateTime, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t, true
	case time.Time:
		return primitive.NewDateTimeFromTime(t), true
	case primitive.ObjectID:
		return primitive.NewDateTimeFromTime(t.Timestamp()), true
	case int64:
		return primitive.DateTime(t), true
	case float64:
		return primitive.DateTime(int64(t)), true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return primitive.NewDateTimeFromTime(ts), true
			}
		}
	}
	return 0, false
}

// ====================================
// MATCH
// ====================================

// Matches kiểm tra document có khớp filter không
func Matches(doc bson.M, filter bson.M) bool {
	for k, cond := range filter {
		switch k {
		case "$or":
			ok := false
			for _, sub := range utility.ToSlice(cond) {
				if m, isM := asM(sub); isM && Matches(doc, m) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		case "$and":
			for _, sub := range utility.ToSlice(cond) {
				if m, isM := asM(sub); !isM || !Matches(doc, m) {
					return false
				}
			}
		default:
			v, present := utility.GetPath(doc, k)
			if !matchField(v, present, cond) {
				return false
			}
		}
	}
	return true
}

func matchField(v interface{}, present bool, cond interface{}) bool {
	if m, ok := asM(cond); ok && hasOperator(m) {
		for op, arg := range m {
			if !matchOperator(v, present, op, arg) {
				return false
			}
		}
		return true
	}
	return present && equalOrContains(v, cond)
}

func matchOperator(v interface{}, present bool, op string, arg interface{}) bool {
	switch op {
	case "$eq":
		return present && equalOrContains(v, arg)
	case "$ne":
		return !present || !equalOrContains(v, arg)
	case "$in":
		if !present {
			for _, c := range utility.ToSlice(arg) {
				if c == nil {
					return true
				}
			}
			return false
		}
		for _, c := range utility.ToSlice(arg) {
			if equalOrContains(v, c) {
				return true
			}
		}
		return false
	case "$nin":
		return !matchOperator(v, present, "$in", arg)
	case "$exists":
		want := isTruthyFlag(arg)
		return present == want
	case "$gt":
		return present && Compare(v, arg) > 0
	case "$gte":
		return present && Compare(v, arg) >= 0
	case "$lt":
		return present && Compare(v, arg) < 0
	case "$lte":
		return present && Compare(v, arg) <= 0
	}
	return false
}

func hasOperator(m bson.M) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func equalOrContains(v, want interface{}) bool {
	if Equal(v, want) {
		return true
	}
	if arr := utility.ToSlice(v); arr != nil {
		for _, item := range arr {
			if Equal(item, want) {
				return true
			}
		}
	}
	return false
}

// ====================================
// VALUE HELPERS
// ====================================

func asM(v interface{}) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]interface{}:
		return bson.M(m), true
	case bson.D:
		out := bson.M{}
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// Equal so sánh hai giá trị bson, coi các kiểu số là tương đương
func Equal(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ma, okA := asM(a)
	mb, okB := asM(b)
	if okA && okB {
		if len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	}
	sa, sb := utility.ToSlice(a), utility.ToSlice(b)
	if sa != nil && sb != nil {
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !Equal(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// typeRank theo thứ tự so sánh của MongoDB
func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case string:
		return 3
	case bson.M, map[string]interface{}, bson.D:
		return 4
	case bson.A, []interface{}:
		return 5
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case primitive.DateTime:
		return 9
	}
	return 10
}

// Compare so sánh hai giá trị bson (-1, 0, 1)
func Compare(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case string:
		return strings.Compare(x, b.(string))
	case primitive.ObjectID:
		y := b.(primitive.ObjectID)
		return strings.Compare(x.Hex(), y.Hex())
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case primitive.DateTime:
		return cmpInt(int64(x), int64(b.(primitive.DateTime)))
	}
	if fa, ok := toFloat(a); ok {
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return 0
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sortDocs(docs []bson.M, keys bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			dir, _ := toFloat(k.Value)
			vi, _ := utility.GetPath(docs[i], k.Key)
			vj, _ := utility.GetPath(docs[j], k.Key)
			c := Compare(vi, vj)
			if c == 0 {
				continue
			}
			if dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func window(docs []bson.M, skip, limit int64) []bson.M {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

func setPath(doc bson.M, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := asM(cur[p])
		if !ok {
			next = bson.M{}
		}
		cur[p] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func unsetPath(doc bson.M, path string) bool {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			return false
		}
		cur = next
	}
	last := parts[len(parts)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}

func deepCopy(v interface{}) interface{} {
	switch x := v.(type) {
	case bson.M:
		out := make(bson.M, len(x))
		for k, val := range x {
			out[k] = deepCopy(val)
		}
		return out
	case map[string]interface{}:
		out := make(bson.M, len(x))
		for k, val := range x {
			out[k] = deepCopy(val)
		}
		return out
	case bson.A:
		out := make(bson.A, len(x))
		for i, val := range x {
			out[i] = deepCopy(val)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(x))
		for i, val := range x {
			out[i] = deepCopy(val)
		}
		return out
	case []bson.M:
		out := make(bson.A, len(x))
		for i, val := range x {
			out[i] = deepCopy(val)
		}
		return out
	}
	return v
}

func cloneAll(docs []bson.M) []bson.M {
	out := make([]bson.M, len(docs))
	for i, d := range docs {
		out[i] = deepCopy(d).(bson.M)
	}
	return out
}
