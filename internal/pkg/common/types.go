package common

// Recipe 標準化食譜結構（AI 擷取結果，與來源媒體無關）
type Recipe struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	RecipeYield        string            `json:"recipeYield"`
	RecipeIngredient   []IngredientLine  `json:"recipeIngredient"`
	RecipeInstructions []InstructionStep `json:"recipeInstructions"`
}

// IngredientLine 單行食材
// Quantity 與 Unit 使用指標以區分「未指定」與「指定為空/零」，
// 下游的單位查詢依賴這個差異
type IngredientLine struct {
	Quantity *float64 `json:"quantity,omitempty"` // nil 表示「適量」或未指定
	Unit     *string  `json:"unit,omitempty"`     // nil 表示未指定；空字串表示明確無單位
	Food     string   `json:"food"`
	Note     string   `json:"note"`
}

// UnitName 回傳單位名稱，未指定時為空字串
func (l IngredientLine) UnitName() string {
	if l.Unit == nil {
		return ""
	}
	return *l.Unit
}

// QuantityValue 回傳數量，未指定或為零視為「適量」
func (l IngredientLine) QuantityValue() float64 {
	if l.Quantity == nil {
		return 0
	}
	return *l.Quantity
}

// InstructionStep 單一步驟
// 步驟若只使用部分食材，文字以相對比例描述（例如「一半的麵粉」）
type InstructionStep struct {
	Text string `json:"text"`
}

// ModelSwitchEvent 模型切換事件（僅存在於單次擷取呼叫期間，不持久化）
type ModelSwitchEvent struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// DefaultRecipeName 擷取結果缺少名稱時的佔位名稱
const DefaultRecipeName = "未命名食譜"

// ApplyDefaults 補齊缺漏欄位，缺少名稱不是錯誤
func (r *Recipe) ApplyDefaults() {
	if r.Name == "" {
		r.Name = DefaultRecipeName
	}
	if r.RecipeIngredient == nil {
		r.RecipeIngredient = []IngredientLine{}
	}
	if r.RecipeInstructions == nil {
		r.RecipeInstructions = []InstructionStep{}
	}
}
