package provider

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// definitionsFile là định dạng file YAML khai báo danh sách provider.
//
//	version: "2025-02.1"
//	providers:
//	  - name: reports
//	    reportIdField: report_id
//	    ownerFields: [user_id]
//	    ...
//
// Thứ tự trong providers chính là thứ tự ưu tiên.
type definitionsFile struct {
	Version   string     `yaml:"version"`
	Providers []Provider `yaml:"providers"`
}

// LoadDefinitions đọc danh sách provider từ file YAML, trả về version và danh sách theo thứ tự khai báo.
// Field không biết bị từ chối để lỗi gõ tên field không âm thầm rơi về rỗng.
func LoadDefinitions(path string) (string, []Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open provider definitions: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var file definitionsFile
	if err := dec.Decode(&file); err != nil {
		return "", nil, fmt.Errorf("parse provider definitions %s: %w", path, err)
	}

	file.Version = strings.TrimSpace(file.Version)
	if file.Version == "" {
		return "", nil, fmt.Errorf("provider definitions %s: thiếu version", path)
	}
	if len(file.Providers) == 0 {
		return "", nil, fmt.Errorf("provider definitions %s: danh sách provider rỗng", path)
	}
	for i, p := range file.Providers {
		if strings.TrimSpace(p.ReportIDField) == "" {
			return "", nil, fmt.Errorf("provider definitions %s: provider #%d (%s) thiếu reportIdField", path, i+1, p.Name)
		}
	}
	return file.Version, file.Providers, nil
}

// ResolveDefinitions trả về danh sách provider từ file nếu path khác rỗng, ngược lại dùng danh sách dựng sẵn
func ResolveDefinitions(path string) (string, []Provider, error) {
	if strings.TrimSpace(path) == "" {
		return DefinitionsVersion, Definitions(), nil
	}
	return LoadDefinitions(path)
}
