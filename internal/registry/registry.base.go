// Package registry cung cấp registry generic, thread-safe và giữ đúng thứ tự đăng ký.
// Thứ tự đăng ký là một phần của hợp đồng: List() luôn trả về theo thứ tự Register,
// không phụ thuộc vào thứ tự duyệt map.
package registry

import (
	"fmt"
	"sync"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
)

// Registry là registry generic có thứ tự.
//
// Example:
//
//	collRegistry := NewRegistry[*mongo.Collection]()
//	collRegistry.Register("reports", db.Collection("reports"))
//	for _, name := range collRegistry.Names() { ... }
type Registry[T any] struct {
	items map[string]T // Map lưu trữ các items theo key
	order []string     // Thứ tự đăng ký
	mu    sync.RWMutex
}

// NewRegistry tạo và trả về một registry mới.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		items: make(map[string]T),
	}
}

// ====================================
// CÁC PHƯƠNG THỨC CỦA REGISTRY
// ====================================

// Register đăng ký một item mới vào registry.
// Nếu name đã tồn tại, item bị ghi đè nhưng vẫn giữ vị trí cũ trong thứ tự.
//
// Returns:
//   - isNew: true nếu là item mới, false nếu ghi đè item cũ
//   - err: lỗi nếu name rỗng
func (r *Registry[T]) Register(name string, item T) (isNew bool, err error) {
	if name == "" {
		return false, fmt.Errorf("name cannot be empty: %w", common.ErrRequiredField)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.items[name]
	r.items[name] = item
	if !exists {
		r.order = append(r.order, name)
	}
	return !exists, nil
}

// Get lấy item theo tên.
func (r *Registry[T]) Get(name string) (item T, exists bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, exists = r.items[name]
	return item, exists
}

// MustGet lấy item theo tên, trả về common.ErrNotFound nếu không có.
func (r *Registry[T]) MustGet(name string) (T, error) {
	item, ok := r.Get(name)
	if !ok {
		return item, fmt.Errorf("item not found: %s: %w", name, common.ErrNotFound)
	}
	return item, nil
}

// Names trả về tên các item theo thứ tự đăng ký (bản sao).
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List trả về các item theo thứ tự đăng ký.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.items[name])
	}
	return out
}

// Len trả về số item đã đăng ký.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clear xóa một item khỏi registry.
// Nếu cleanup được cung cấp, nó được gọi trước khi xóa để giải phóng tài nguyên.
func (r *Registry[T]) Clear(name string, cleanup func(T) error) (deleted bool, err error) {
	if name == "" {
		return false, fmt.Errorf("name cannot be empty: %w", common.ErrRequiredField)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, exists := r.items[name]
	if !exists {
		return false, nil
	}

	if cleanup != nil {
		if err := cleanup(item); err != nil {
			return false, fmt.Errorf("failed to cleanup item %s: %w", name, err)
		}
	}

	delete(r.items, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// ClearAll xóa tất cả items trong registry.
func (r *Registry[T]) ClearAll(cleanup func(T) error) (count int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count = len(r.order)
	if count == 0 {
		return 0, nil
	}

	if cleanup != nil {
		var errs []error
		for _, name := range r.order {
			if err := cleanup(r.items[name]); err != nil {
				errs = append(errs, fmt.Errorf("failed to cleanup %s: %w", name, err))
			}
		}
		if len(errs) > 0 {
			return 0, fmt.Errorf("cleanup errors occurred: %v", errs)
		}
	}

	r.items = make(map[string]T)
	r.order = nil
	return count, nil
}
