package extract

import (
	"fmt"
	"strings"
)

// 共用的規則片段：保留原始份量、相對比例、JSON 欄位說明
// 所有提示詞都堅持同一個輸出結構，解析端才能統一處理

const promptBatchRules = `重要：保留食譜的「原始份量」！不要換算成一人份！
在 recipeYield 標明這份食譜是幾人份（例如「4 人份」或「6 個」）。

重要（製作步驟）：若某步驟只使用一種食材的「一部分」，
請用相對比例描述，不要寫絕對數量。例如：
- 錯誤：「將 200 克麵粉倒入碗中」（總量其實需要 600 克麵粉）
- 正確：「倒入三分之一的麵粉」或「加入一半的奶油」
這樣調整份量時食譜才能保持一致。`

const promptIngredientRules = `重要（recipeIngredient 欄位，保留原始份量！）：
- "quantity"：食譜的原始數量，必須是數字（例如 500、3、0.5）。「少許」或「適量」請填 0。
- "unit"：單位文字（克、公斤、毫升、公升、茶匙、大匙、撮、個、把、罐、包等）。沒有單位請留空。
- "food"：食材本身（麵粉、鹽、紅蘿蔔等）。
- "note"：補充說明（例如「切碎」、「新鮮」、「可省略」）。沒有請留空。`

const promptJSONShape = `JSON 必須完全符合以下格式：
{
    "name": "食譜名稱",
    "description": "一句簡短的食譜描述",
    "recipeYield": "4 人份",
    "recipeIngredient": [
        {"quantity": 500, "unit": "g", "food": "麵粉", "note": ""},
        {"quantity": 250, "unit": "ml", "food": "牛奶", "note": ""},
        {"quantity": 1, "unit": "茶匙", "food": "鹽", "note": ""},
        {"quantity": 2, "unit": "大匙", "food": "橄欖油", "note": "特級初榨"},
        {"quantity": 3, "unit": "", "food": "蛋", "note": ""}
    ],
    "recipeInstructions": [
        {"text": "步驟 1 - 使用部分食材時請寫相對比例（例如「一半的麵粉」）"},
        {"text": "步驟 2 的描述"}
    ]
}`

const promptJSONShapeWithIndex = `JSON 必須完全符合以下格式：
{
    "name": "食譜名稱",
    "description": "一句簡短的食譜描述",
    "recipeYield": "4 人份",
    "recipeIngredient": [
        {"quantity": 500, "unit": "g", "food": "麵粉", "note": ""},
        {"quantity": 250, "unit": "ml", "food": "牛奶", "note": ""}
    ],
    "recipeInstructions": [
        {"text": "步驟 1 - 使用部分食材時請寫相對比例（例如「一半的麵粉」）"},
        {"text": "步驟 2 的描述"}
    ],
    "best_image_index": 0
}`

const promptBestImageRules = `重要（best_image_index 欄位）：
- 從上傳的圖片中選出最適合當食譜封面的那張（0 起算的索引）
- 優先選擇「完成的料理」拍得最誘人的圖片
- 不要選食材清單或純文字頁面
- 第一張 = 0，第二張 = 1，依此類推
- 只有一張圖片時填 0`

// buildTextPrompt 產生純文字（PDF 抽出內容）的提示詞
func buildTextPrompt(text string) string {
	var b strings.Builder
	b.WriteString("分析這段食譜文字，將它轉換成 Mealie API 可用的有效 JSON。\n")
	b.WriteString("只回覆 JSON 物件本身，不要任何解釋或 Markdown。\n\n")
	b.WriteString(promptBatchRules)
	b.WriteString("\n\n")
	b.WriteString(promptJSONShape)
	b.WriteString("\n\n")
	b.WriteString(promptIngredientRules)
	b.WriteString("\n\n以下是食譜文字：\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n")
	return b.String()
}

// buildImagePrompt 產生圖片分析的提示詞
// multi 為多張圖片模式（如食譜書的連續頁面）
func buildImagePrompt(multi bool) string {
	var b strings.Builder
	if multi {
		b.WriteString("分析這些食譜照片（例如食譜書的多個頁面）。\n")
		b.WriteString("讀取每張圖片上的所有資訊，合併成一份完整的食譜。\n\n")
	} else {
		b.WriteString("分析這張食譜照片（例如食譜書或雜誌的頁面）。\n\n")
	}
	b.WriteString(promptBatchRules)
	b.WriteString("\n\n只回覆一個有效的 JSON 物件，不要任何解釋或 Markdown。\n\n")
	b.WriteString(promptJSONShapeWithIndex)
	b.WriteString("\n\n")
	b.WriteString(promptIngredientRules)
	b.WriteString("\n\n")
	b.WriteString(promptBestImageRules)
	if multi {
		b.WriteString("\n\n合併所有圖片的資訊，輸出一份完整的食譜。\n")
	} else {
		b.WriteString("\n\n讀取圖片上的全部文字，抽出所有食材與製作步驟。\n")
	}
	return b.String()
}

// buildVideoPrompt 產生影片分析的提示詞
// caption 非空時採雙來源模式：步驟以影片為準、份量以說明文字為準
func buildVideoPrompt(caption string) string {
	var b strings.Builder
	if caption != "" {
		b.WriteString("分析這部食譜影片以及它附帶的說明文字（caption）。\n")
	} else {
		b.WriteString("分析這部食譜影片並抽出所有資訊。\n")
	}
	b.WriteString("重要：不論影片使用什麼語言，一律以繁體中文回覆。\n")
	b.WriteString("將所有食材與製作步驟翻譯成繁體中文。\n\n")
	b.WriteString(promptBatchRules)
	if caption != "" {
		b.WriteString("\n\n=== 影片說明 / CAPTION ===\n")
		b.WriteString(caption)
		b.WriteString("\n=== 說明結束 ===\n\n")
		b.WriteString("同時利用兩個資訊來源：\n")
		b.WriteString("1. 影片本身（畫面資訊、口述的步驟）\n")
		b.WriteString("2. 說明文字（經常包含份量、技巧或補充資訊）\n\n")
		b.WriteString("說明文字提到影片中沒說的份量時，採用說明文字的數據！\n")
		b.WriteString("兩者衝突時，步驟以影片為準、份量以說明文字為準。\n")
	}
	b.WriteString("\n只回覆一個有效的 JSON 物件，不要任何解釋或 Markdown。\n\n")
	b.WriteString(promptJSONShape)
	b.WriteString("\n\n")
	b.WriteString(promptIngredientRules)
	b.WriteString("\n")
	return b.String()
}

// buildBestFramePrompt 產生尋找封面畫面時間點的提示詞
func buildBestFramePrompt(durationSeconds float64) string {
	var b strings.Builder
	b.WriteString("分析這部食譜影片，找出最適合當食譜封面的時間點。\n\n")
	b.WriteString("尋找「完成的料理」看起來最誘人的瞬間，最好是：\n")
	b.WriteString("- 擺盤完成、準備上桌的料理\n")
	b.WriteString("- 裝飾收尾的漂亮畫面\n")
	b.WriteString("- 成品的主視覺鏡頭\n\n")
	b.WriteString("只回覆一個 JSON 物件：\n")
	b.WriteString("{\n    \"best_timestamp_seconds\": 45,\n    \"description\": \"簡短說明為什麼選這個時間點\"\n}\n\n")
	b.WriteString("時間以秒為單位（例如 45 代表 0:45、90 代表 1:30）。\n")
	if durationSeconds > 0 {
		fmt.Fprintf(&b, "影片總長約 %.0f 秒，完成的料理通常出現在後半段。\n", durationSeconds)
	} else {
		b.WriteString("完成的料理通常出現在影片後半段。\n")
	}
	return b.String()
}
