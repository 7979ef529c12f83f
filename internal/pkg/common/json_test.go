package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject_PlainObject(t *testing.T) {
	in := `{"name":"蛋餅","recipeYield":"2 人份"}`
	assert.Equal(t, in, ExtractJSONObject(in))
}

func TestExtractJSONObject_FencedWithLanguageTag(t *testing.T) {
	in := "```json\n{\"name\":\"蛋餅\"}\n```"
	assert.Equal(t, `{"name":"蛋餅"}`, ExtractJSONObject(in))
}

func TestExtractJSONObject_FencedWithoutLanguageTag(t *testing.T) {
	in := "```\n{\"name\":\"蛋餅\"}\n```"
	assert.Equal(t, `{"name":"蛋餅"}`, ExtractJSONObject(in))
}

func TestExtractJSONObject_SurroundingProse(t *testing.T) {
	in := "好的，以下是擷取結果：\n{\"name\":\"炒飯\"}\n希望對你有幫助！"
	assert.Equal(t, `{"name":"炒飯"}`, ExtractJSONObject(in))
}

func TestExtractJSONObject_BraceInsideString(t *testing.T) {
	// 字串值內的 } 不可提前結束物件
	in := `{"description":"先做醬汁 {重點}","name":"niku"} trailing`
	assert.Equal(t, `{"description":"先做醬汁 {重點}","name":"niku"}`, ExtractJSONObject(in))
}

func TestExtractJSONObject_EscapedQuoteInsideString(t *testing.T) {
	in := `{"note":"他說 \"好吃\" 就收工"} extra`
	assert.Equal(t, `{"note":"他說 \"好吃\" 就收工"}`, ExtractJSONObject(in))
}

func TestExtractJSONObject_NestedObjects(t *testing.T) {
	in := `prefix {"a":{"b":{"c":1}},"d":2} suffix {"x":1}`
	assert.Equal(t, `{"a":{"b":{"c":1}},"d":2}`, ExtractJSONObject(in))
}

func TestExtractJSONObject_Unbalanced(t *testing.T) {
	// 沒有回到深度零時回傳自第一個 { 起的剩餘文字
	in := `text {"name":"half`
	assert.Equal(t, `{"name":"half`, ExtractJSONObject(in))
}

func TestExtractJSONObject_NoBrace(t *testing.T) {
	assert.Equal(t, "抱歉，我無法解析這份食譜。", ExtractJSONObject("抱歉，我無法解析這份食譜。"))
}

func TestParseJSON_ExtraDataRejected(t *testing.T) {
	var v map[string]interface{}
	err := ParseJSON(`{"a":1}{"b":2}`, &v)
	require.Error(t, err)
}

func TestQuoteJSONKeys(t *testing.T) {
	assert.Equal(t, `{"name": "x", "qty": 1}`, QuoteJSONKeys(`{name: "x", qty: 1}`))
}
