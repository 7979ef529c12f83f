package fallback

import (
	"context"
	"fmt"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Provider 內容生成供應商的抽象，便於測試替換
type Provider interface {
	GenerateContent(ctx context.Context, model string, parts []*genai.Part) (string, error)
}

// Observer 接收模型切換事件，在切換當下同步呼叫
type Observer func(common.ModelSwitchEvent)

// CollectEvents 回傳一個 Observer 與事件切片的指標，方便呼叫端收集切換紀錄
func CollectEvents() (Observer, *[]common.ModelSwitchEvent) {
	events := &[]common.ModelSwitchEvent{}
	return func(e common.ModelSwitchEvent) {
		*events = append(*events, e)
	}, events
}

// Driver 模型備援驅動器
// 候選清單是固定優先順序，切換只往前、不回頭
type Driver struct {
	provider Provider
	models   []string
}

// NewDriver 創建備援驅動器，models 為優先順序排列的候選模型
func NewDriver(provider Provider, models []string) *Driver {
	return &Driver{
		provider: provider,
		models:   models,
	}
}

// Models 回傳候選模型清單（依優先順序）
func (d *Driver) Models() []string {
	out := make([]string, len(d.models))
	copy(out, d.models)
	return out
}

// Generate 以 startModel 發出請求，配額耗盡時依清單順序切換到下一個候選
// 只有配額錯誤觸發切換；其他錯誤立即回傳
// 回傳回應文字與實際完成請求的模型名稱
func (d *Driver) Generate(ctx context.Context, startModel string, parts []*genai.Part, obs Observer) (string, string, error) {
	model := startModel
	if model == "" && len(d.models) > 0 {
		model = d.models[0]
	}

	tried := []string{}
	for {
		tried = append(tried, model)

		text, err := d.provider.GenerateContent(ctx, model, parts)
		if err == nil {
			return text, model, nil
		}

		if !common.IsQuotaError(err) {
			return "", model, err
		}

		next := d.nextModel(model, tried)
		if next == "" {
			common.LogError("所有模型配額皆已耗盡", zap.Strings("嘗試過的模型", tried))
			return "", model, common.NewQuotaExhaustedAll(tried)
		}

		common.LogWarn("模型配額耗盡，切換到下一個候選",
			zap.String("原模型", model),
			zap.String("新模型", next),
		)
		if obs != nil {
			obs(common.ModelSwitchEvent{Model: next, Reason: fmt.Sprintf("%s 配額耗盡", model)})
		}
		model = next
	}
}

// nextModel 回傳 current 之後第一個尚未嘗試過的候選，只往前不回頭
// current 不在清單內（呼叫端指定了清單外的模型）時不切換，
// 清單外的模型視為呼叫端的明確選擇，配額耗盡即終止
// 全數用盡回傳空字串
func (d *Driver) nextModel(current string, tried []string) string {
	start := -1
	for i, m := range d.models {
		if m == current {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}
	for _, m := range d.models[start:] {
		if !contains(tried, m) {
			return m
		}
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
