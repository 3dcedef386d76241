package provider

// DefinitionsVersion đánh dấu phiên bản của danh sách provider bên dưới.
// Thay đổi thứ tự hoặc field của bất kỳ provider nào phải tăng version này.
const DefinitionsVersion = "2024-11.1"

// Tên các collection báo cáo, theo thứ tự ưu tiên
const (
	CollectionReports              = "reports"                // Upload thủ công
	CollectionUrgentReports        = "urgent_reports"         // Nhập batch khẩn
	CollectionMultiApproachReports = "multi_approach_reports" // Nhập batch nhiều phương pháp
	CollectionQuickSubmitReports   = "quick_submit_reports"   // Nhập batch nộp nhanh
	CollectionLegacyAssetReports   = "legacy_asset_reports"   // Upload tài sản kiểu cũ
)

// Definitions trả về danh sách provider (chưa gắn Store), theo thứ tự ưu tiên.
// Thứ tự phản ánh mật độ dữ liệu dự kiến: collection dày nhất đứng trước.
func Definitions() []Provider {
	return []Provider{
		{
			Name:            CollectionReports,
			Pipeline:        "manual-upload",
			ReportIDField:   "report_id",
			OwnerFields:     []string{"user_id", "owner_id"},
			ScopeField:      "company_office_id",
			TitleField:      "title",
			StatusField:     "report_status",
			AssetsField:     "asset_data",
			AssetStateField: "submitState",
			CreatedAtField:  "createdAt",
			UpdatedAtField:  "updatedAt",
		},
		{
			Name:            CollectionUrgentReports,
			Pipeline:        "urgent-batch",
			BatchField:      "batch_id",
			ReportIDField:   "report_id",
			OwnerFields:     []string{"user_id"},
			ScopeField:      "company_office_id",
			TitleField:      "title",
			StatusField:     "report_status",
			AssetsField:     "asset_data",
			AssetStateField: "submitState",
			CreatedAtField:  "createdAt",
			UpdatedAtField:  "updatedAt",
		},
		{
			Name:            CollectionMultiApproachReports,
			Pipeline:        "multi-approach-batch",
			BatchField:      "batchId",
			ReportIDField:   "reportId",
			OwnerFields:     []string{"userId", "user_id"},
			ScopeField:      "companyOfficeId",
			TitleField:      "title",
			StatusField:     "reportStatus",
			AssetsField:     "assets",
			AssetStateField: "submitState",
			CreatedAtField:  "createdAt",
			UpdatedAtField:  "updatedAt",
		},
		{
			Name:            CollectionQuickSubmitReports,
			Pipeline:        "quick-submit-batch",
			BatchField:      "batch_id",
			ReportIDField:   "report_id",
			OwnerFields:     []string{"user_id", "taqeem_user_id"},
			ScopeField:      "company_office_id",
			TitleField:      "report_title",
			StatusField:     "report_status",
			AssetsField:     "asset_data",
			AssetStateField: "submitState",
			CreatedAtField:  "createdAt",
			UpdatedAtField:  "updatedAt",
		},
		{
			Name:            CollectionLegacyAssetReports,
			Pipeline:        "legacy-asset-upload",
			BatchField:      "batch_id",
			ReportIDField:   "report_id",
			OwnerFields:     []string{"uploaded_by", "user_id"},
			ScopeField:      "office_id",
			TitleField:      "client_name",
			StatusField:     "report_status",
			AssetsField:     "assets",
			AssetStateField: "submit_state",
			CreatedAtField:  "created_at",
			UpdatedAtField:  "updated_at",
		},
	}
}

// Bind gắn Store cho từng definition theo tên collection và dựng Registry
func Bind(defs []Provider, storeFor func(collection string) (Store, error)) (*Registry, error) {
	bound := make([]Provider, 0, len(defs))
	for _, d := range defs {
		store, err := storeFor(d.Name)
		if err != nil {
			return nil, err
		}
		d.Store = store
		bound = append(bound, d)
	}
	return NewRegistry(bound)
}
