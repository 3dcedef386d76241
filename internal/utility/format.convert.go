package utility

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var objectIDWrapper = regexp.MustCompile(`^(?i)objectid\(\s*["']?([0-9a-fA-F]{24})["']?\s*\)$`)

// String2ObjectID chuyển đổi chuỗi thành ObjectID
// @params - chuỗi cần chuyển đổi
// @returns - ObjectID (NilObjectID nếu không hợp lệ)
func String2ObjectID(id string) primitive.ObjectID {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID
	}
	return objectID
}

// CoerceObjectID chuyển một giá trị "lỏng" thành ObjectID.
// Chấp nhận: ObjectID, chuỗi hex 24 ký tự (có khoảng trắng, dấu nháy, chữ hoa),
// dạng ObjectId("...") và {"$oid": "..."}. Trả về false nếu không thể chuyển.
func CoerceObjectID(v interface{}) (primitive.ObjectID, bool) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, !id.IsZero()
	case *primitive.ObjectID:
		if id == nil {
			return primitive.NilObjectID, false
		}
		return *id, !id.IsZero()
	case map[string]interface{}:
		return CoerceObjectID(id["$oid"])
	case []byte:
		if len(id) == 12 {
			var oid primitive.ObjectID
			copy(oid[:], id)
			return oid, !oid.IsZero()
		}
		return CoerceObjectID(string(id))
	case string:
		s := strings.TrimSpace(id)
		s = strings.Trim(s, `"'`)
		if m := objectIDWrapper.FindStringSubmatch(s); m != nil {
			s = m[1]
		}
		oid, err := primitive.ObjectIDFromHex(strings.ToLower(s))
		if err != nil || oid.IsZero() {
			return primitive.NilObjectID, false
		}
		return oid, true
	}
	return primitive.NilObjectID, false
}

// IDString trả về dạng chuỗi của _id (hex nếu là ObjectID)
func IDString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	}
	return fmt.Sprint(v)
}

// ToString chuyển giá trị bson đơn giản thành chuỗi ("" nếu nil)
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case primitive.ObjectID:
		return s.Hex()
	case int32, int64, int:
		return fmt.Sprintf("%d", s)
	case float64:
		if s == math.Trunc(s) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// ToMillis chuyển giá trị thời gian lưu trong document thành Unix milliseconds.
// Collection cũ lưu createdAt dạng Date, collection mới lưu int64 milli (UnixMilli).
// Trả về false nếu giá trị trống hoặc không nhận dạng được.
func ToMillis(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case primitive.DateTime:
		return int64(t), true
	case time.Time:
		if t.IsZero() {
			return 0, false
		}
		return t.UnixMilli(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return 0, false
		}
		return t.UnixMilli(), true
	case primitive.Timestamp:
		return int64(t.T) * 1000, true
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UnixMilli(), true
			}
		}
	}
	return 0, false
}

// UnixMilli trả về thời gian dạng milliseconds
func UnixMilli(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// CurrentTimeInMilli trả về thời gian hiện tại dạng milliseconds
func CurrentTimeInMilli() int64 {
	return UnixMilli(time.Now())
}
