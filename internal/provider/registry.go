package provider

import (
	"fmt"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/registry"
)

// Registry giữ danh sách provider cố định, theo thứ tự ưu tiên.
// Thứ tự là thứ tự của slice truyền vào NewRegistry, không bao giờ lấy từ việc duyệt map.
type Registry struct {
	providers *registry.Registry[*Provider]
}

// NewRegistry kiểm tra và đóng băng danh sách provider. Rank được gán theo vị trí (1-based).
func NewRegistry(providers []Provider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("provider registry rỗng: %w", common.ErrRequiredField)
	}
	r := &Registry{providers: registry.NewRegistry[*Provider]()}
	for i := range providers {
		p := providers[i]
		if err := validate(&p); err != nil {
			return nil, err
		}
		p.Rank = i + 1
		p.OwnerFields = append([]string(nil), p.OwnerFields...)
		isNew, err := r.providers.Register(p.Name, &p)
		if err != nil {
			return nil, err
		}
		if !isNew {
			return nil, fmt.Errorf("provider %q bị khai báo trùng: %w", p.Name, common.ErrDuplicate)
		}
	}
	return r, nil
}

func validate(p *Provider) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("provider thiếu Name: %w", common.ErrRequiredField)
	case p.Store == nil:
		return fmt.Errorf("provider %q thiếu Store: %w", p.Name, common.ErrRequiredField)
	case p.ReportIDField == "":
		return fmt.Errorf("provider %q thiếu ReportIDField: %w", p.Name, common.ErrRequiredField)
	case len(p.OwnerFields) == 0:
		return fmt.Errorf("provider %q thiếu OwnerFields: %w", p.Name, common.ErrRequiredField)
	}
	return nil
}

// List trả về tất cả provider theo thứ tự ưu tiên.
// Các con trỏ trỏ vào cấu hình dùng chung của registry: caller chỉ đọc, không được sửa.
func (r *Registry) List() []*Provider {
	return r.providers.List()
}

// Names trả về tên các provider theo thứ tự ưu tiên
func (r *Registry) Names() []string {
	return r.providers.Names()
}

// WithBatchField trả về các provider có field batch id, giữ nguyên thứ tự ưu tiên
func (r *Registry) WithBatchField() []*Provider {
	var out []*Provider
	for _, p := range r.providers.List() {
		if p.HasBatchField() {
			out = append(out, p)
		}
	}
	return out
}

// Get lấy provider theo tên (chỉ đọc, như List)
func (r *Registry) Get(name string) (*Provider, bool) {
	return r.providers.Get(name)
}

// Len trả về số provider
func (r *Registry) Len() int {
	return r.providers.Len()
}

// Base trả về provider đứng đầu (dùng làm gốc của aggregation pipeline)
func (r *Registry) Base() *Provider {
	list := r.providers.List()
	return list[0]
}

// BatchFields trả về tập tên field batch của mọi provider
func (r *Registry) BatchFields() map[string]bool {
	out := make(map[string]bool)
	for _, p := range r.WithBatchField() {
		out[p.BatchField] = true
	}
	return out
}
