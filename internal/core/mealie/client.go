package mealie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"recipe-importer/internal/core/media"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client Mealie 後端客戶端
// 負責食材 / 單位目錄的查找建立與食譜的寫入
type Client struct {
	config *config.MealieConfig
	client *resty.Client
}

// EntityRef 目錄實體（食材或單位）的引用
type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// catalogItem 目錄查詢回應中的單筆項目
type catalogItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

// catalogPage 目錄查詢的分頁回應
type catalogPage struct {
	Items []catalogItem `json:"items"`
}

// UpsertOptions 食譜寫入的附加選項
type UpsertOptions struct {
	SourceURL string // 原始來源連結（影片或網頁）
	Thumbnail []byte // 封面圖片，寫入成功後上傳
}

// NewClient 創建 Mealie 客戶端
func NewClient(cfg *config.MealieConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIToken))

	return &Client{
		config: cfg,
		client: client,
	}
}

// TestConnection 測試與 Mealie 的連線
func (c *Client) TestConnection(ctx context.Context) (bool, string) {
	resp, err := c.client.R().SetContext(ctx).Get("/api/app/about")
	if err != nil {
		return false, c.wrapTransportError(err).Error()
	}
	if resp.StatusCode() != 200 {
		return false, fmt.Sprintf("非預期的回應：%d", resp.StatusCode())
	}

	var about struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(resp.Body(), &about); err != nil || about.Version == "" {
		return true, "已連線到 Mealie（版本未知）"
	}
	return true, fmt.Sprintf("已連線到 Mealie v%s", about.Version)
}

// GetOrCreateFood 依名稱查找食材，不存在就建立
// 名稱比對不分大小寫；任何失敗都回傳 nil 而不中斷整體匯入
func (c *Client) GetOrCreateFood(ctx context.Context, name string) *EntityRef {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("search", name).
		Get("/api/foods")
	if err != nil {
		common.LogError("查詢食材失敗", zap.String("食材", name), zap.Error(err))
		return nil
	}
	if resp.StatusCode() == 200 {
		var page catalogPage
		if err := json.Unmarshal(resp.Body(), &page); err == nil {
			for _, item := range page.Items {
				if strings.EqualFold(item.Name, name) {
					common.LogDebug("找到既有食材", zap.String("食材", item.Name), zap.String("id", item.ID))
					return &EntityRef{ID: item.ID, Name: item.Name}
				}
			}
		}
	}

	created := c.createCatalogEntry(ctx, "/api/foods", map[string]string{"name": name})
	if created == nil {
		common.LogWarn("無法建立食材", zap.String("食材", name))
		return nil
	}
	common.LogInfo("已建立食材", zap.String("食材", created.Name), zap.String("id", created.ID))
	return created
}

// GetOrCreateUnit 依名稱或縮寫查找單位，不存在就建立
// 建立時縮寫同名稱；任何失敗都回傳 nil 而不中斷整體匯入
func (c *Client) GetOrCreateUnit(ctx context.Context, name string) *EntityRef {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("search", name).
		Get("/api/units")
	if err != nil {
		common.LogError("查詢單位失敗", zap.String("單位", name), zap.Error(err))
		return nil
	}
	if resp.StatusCode() == 200 {
		var page catalogPage
		if err := json.Unmarshal(resp.Body(), &page); err == nil {
			for _, item := range page.Items {
				if strings.EqualFold(item.Name, name) || strings.EqualFold(item.Abbreviation, name) {
					common.LogDebug("找到既有單位", zap.String("單位", item.Name), zap.String("id", item.ID))
					return &EntityRef{ID: item.ID, Name: item.Name}
				}
			}
		}
	}

	created := c.createCatalogEntry(ctx, "/api/units", map[string]string{
		"name":         name,
		"abbreviation": name,
	})
	if created == nil {
		common.LogWarn("無法建立單位", zap.String("單位", name))
		return nil
	}
	common.LogInfo("已建立單位", zap.String("單位", created.Name), zap.String("id", created.ID))
	return created
}

// createCatalogEntry 建立目錄實體，非 2xx 回傳 nil
func (c *Client) createCatalogEntry(ctx context.Context, endpoint string, body map[string]string) *EntityRef {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		common.LogError("建立目錄實體失敗", zap.String("endpoint", endpoint), zap.Error(err))
		return nil
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return nil
	}

	var ref EntityRef
	if err := json.Unmarshal(resp.Body(), &ref); err != nil || ref.ID == "" {
		return nil
	}
	return &ref
}

// CreateRecipe 把抽取出的食譜寫入 Mealie，回傳 slug
// 流程：建立草稿（只有名稱）→ 取回完整物件 → 合併細節 → 寫回
// 後端自帶的欄位原樣保留，只改我們負責的部分
func (c *Client) CreateRecipe(ctx context.Context, recipe *common.Recipe, opts UpsertOptions) (string, error) {
	name := recipe.Name
	if name == "" {
		name = common.DefaultRecipeName
	}

	// 步驟 1：建立草稿，取得 slug
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": name}).
		Post("/api/recipes")
	if err != nil {
		return "", c.wrapTransportError(err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return "", common.NewBackendRejectedError(resp.StatusCode(), string(resp.Body()))
	}

	slug, err := parseSlug(resp.Body())
	if err != nil {
		return "", err
	}
	common.LogInfo("食譜草稿已建立", zap.String("食譜", name), zap.String("slug", slug))

	// 步驟 2：取回後端產生的完整食譜物件
	resp, err = c.client.R().SetContext(ctx).Get("/api/recipes/" + slug)
	if err != nil {
		return "", c.wrapTransportError(err)
	}
	if resp.StatusCode() != 200 {
		return "", common.NewBackendRejectedError(resp.StatusCode(), string(resp.Body()))
	}

	var existing map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &existing); err != nil {
		return "", fmt.Errorf("無法解析食譜物件: %w", err)
	}

	// 步驟 3：合併抽取出的細節
	description := recipe.Description
	if opts.SourceURL != "" {
		if description != "" {
			description = fmt.Sprintf("%s\n\n📹 來源：%s", description, opts.SourceURL)
		} else {
			description = fmt.Sprintf("📹 來源：%s", opts.SourceURL)
		}
		existing["orgURL"] = opts.SourceURL
	}
	existing["description"] = description

	recipeYield := recipe.RecipeYield
	if recipeYield == "" {
		recipeYield = "1 人份"
	}
	existing["recipeYield"] = recipeYield
	existing["recipeIngredient"] = c.formatIngredients(ctx, recipe.RecipeIngredient)
	existing["recipeInstructions"] = formatInstructions(recipe.RecipeInstructions)

	// 步驟 4：整包寫回
	resp, err = c.client.R().
		SetContext(ctx).
		SetBody(existing).
		Put("/api/recipes/" + slug)
	if err != nil {
		return "", c.wrapTransportError(err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return "", common.NewBackendRejectedError(resp.StatusCode(), string(resp.Body()))
	}
	common.LogInfo("食譜已寫入", zap.String("slug", slug))

	// 步驟 5：上傳封面圖片（圖片失敗不影響已寫入的食譜）
	if len(opts.Thumbnail) > 0 {
		c.UploadRecipeImage(ctx, slug, opts.Thumbnail)
	}

	return slug, nil
}

// formatIngredients 把抽出的食材行轉成 Mealie 的結構化食材
// 每一行都即時對目錄做 get-or-create；目錄失敗只會讓該行缺引用，不會失敗
func (c *Client) formatIngredients(ctx context.Context, lines []common.IngredientLine) []map[string]interface{} {
	formatted := make([]map[string]interface{}, 0, len(lines))
	for _, line := range lines {
		var quantity interface{}
		if q := line.Quantity; q != nil && *q != 0 {
			quantity = *q
		}

		var unitRef, foodRef interface{}
		if ref := c.GetOrCreateUnit(ctx, line.UnitName()); ref != nil {
			unitRef = ref
		}
		if ref := c.GetOrCreateFood(ctx, line.Food); ref != nil {
			foodRef = ref
		}

		var note interface{}
		if line.Note != "" {
			note = line.Note
		}

		formatted = append(formatted, map[string]interface{}{
			"quantity": quantity,
			"unit":     unitRef,
			"food":     foodRef,
			"note":     note,
		})
	}
	return formatted
}

// formatInstructions 把步驟轉成 Mealie 的格式，每一步配一個新的 id
func formatInstructions(steps []common.InstructionStep) []map[string]string {
	formatted := make([]map[string]string, 0, len(steps))
	for _, step := range steps {
		formatted = append(formatted, map[string]string{
			"id":   common.GenerateUUID(),
			"text": step.Text,
		})
	}
	return formatted
}

// UploadRecipeImage 以 multipart 上傳食譜封面
// 失敗只記錄不回傳錯誤，食譜本體已寫入成功
func (c *Client) UploadRecipeImage(ctx context.Context, slug string, imageData []byte) bool {
	mimeType := media.DetectImageMIME(imageData)
	ext := strings.TrimPrefix(media.ImageExtension(mimeType), ".")

	common.LogInfo("上傳食譜封面",
		zap.String("slug", slug),
		zap.Int("大小KB", len(imageData)/1024),
		zap.String("mime_type", mimeType),
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("image", "cover."+ext, bytes.NewReader(imageData)).
		SetMultipartFormData(map[string]string{"extension": ext}).
		Put("/api/recipes/" + slug + "/image")
	if err != nil {
		common.LogError("封面上傳失敗", zap.String("slug", slug), zap.Error(err))
		return false
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		common.LogWarn("封面上傳被拒絕",
			zap.String("slug", slug),
			zap.Int("status", resp.StatusCode()),
			zap.String("body", truncateBody(resp.Body(), 200)),
		)
		return false
	}
	common.LogInfo("封面上傳完成", zap.String("slug", slug))
	return true
}

// parseSlug 從草稿建立回應中取出 slug
// Mealie 版本差異：可能是純字串，也可能是帶 slug 或 id 的物件
func parseSlug(body []byte) (string, error) {
	var asString string
	if err := json.Unmarshal(body, &asString); err == nil && asString != "" {
		return asString, nil
	}

	var asObject struct {
		Slug string `json:"slug"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(body, &asObject); err == nil {
		if asObject.Slug != "" {
			return asObject.Slug, nil
		}
		if asObject.ID != "" {
			return asObject.ID, nil
		}
	}
	return "", fmt.Errorf("回應中沒有 slug: %s", truncateBody(body, 200))
}

// wrapTransportError 把傳輸層錯誤轉為分類錯誤
func (c *Client) wrapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return common.NewBackendTimeoutError(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewBackendTimeoutError(err)
	}
	return common.NewBackendUnreachableError(c.config.URL, err)
}

func truncateBody(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n])
}
