package utility

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// GetPath đọc giá trị theo đường dẫn "a.b.c" trong document bson.
// Hỗ trợ bson.M, bson.D, map[string]interface{} lồng nhau.
func GetPath(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		next, ok := lookup(cur, part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func lookup(doc interface{}, key string) (interface{}, bool) {
	switch d := doc.(type) {
	case bson.M:
		v, ok := d[key]
		return v, ok
	case map[string]interface{}:
		v, ok := d[key]
		return v, ok
	case bson.D:
		for _, e := range d {
			if e.Key == key {
				return e.Value, true
			}
		}
	}
	return nil, false
}

// ToSlice chuyển bson.A / []interface{} thành []interface{}
func ToSlice(v interface{}) []interface{} {
	switch a := v.(type) {
	case bson.A:
		return []interface{}(a)
	case []interface{}:
		return a
	case []bson.M:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out
	}
	return nil
}

// CloneM sao chép nông một bson.M
func CloneM(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
