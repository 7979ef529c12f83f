package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// 匯入管線錯誤代碼
const (
	// AI 供應商錯誤
	ErrCodeQuotaExhausted    = "QUOTA_EXHAUSTED"    // 配額耗盡，觸發模型降級
	ErrCodeModelUnavailable  = "MODEL_UNAVAILABLE"  // 模型不存在或不可用
	ErrCodeProviderOverload  = "PROVIDER_OVERLOADED" // 供應商暫時過載
	ErrCodeMalformedResponse = "MALFORMED_RESPONSE" // AI 回應無法解析為結構化物件

	// 後端（食譜庫）錯誤
	ErrCodeBackendUnreachable = "BACKEND_UNREACHABLE" // 連線失敗
	ErrCodeBackendTimeout     = "BACKEND_TIMEOUT"     // 請求超時
	ErrCodeBackendRejected    = "BACKEND_REJECTED"    // 後端回傳非成功狀態碼

	// 媒體處理錯誤
	ErrCodeMediaProcessing = "MEDIA_PROCESSING_FAILED" // 供應商端媒體處理失敗或逾時

	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError = "INTERNAL_ERROR" // 500
)

// ImportError 匯入管線的分類錯誤
// Code 區分失敗原因（連線 / 內容 / 配額），呼叫端據此決定重試或放棄
type ImportError struct {
	Code       string
	Message    string
	Model      string // 相關模型（供應商錯誤時）
	RetryAfter int    // 建議等待秒數（配額錯誤時，0 表示未知）
	Status     int    // HTTP 狀態碼（後端錯誤時）
	Body       string // 回應內容（後端錯誤時）
	Err        error  // 原始錯誤
}

func (e *ImportError) Error() string {
	switch e.Code {
	case ErrCodeQuotaExhausted:
		if e.Message != "" {
			return e.Message
		}
		if e.RetryAfter > 0 {
			return fmt.Sprintf("配額耗盡（%s），建議等待約 %d 秒或改用其他模型", e.Model, e.RetryAfter)
		}
		return fmt.Sprintf("配額耗盡（%s）", e.Model)
	case ErrCodeBackendRejected:
		return fmt.Sprintf("後端拒絕請求 (%d): %s", e.Status, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// NewQuotaError 建立配額耗盡錯誤
func NewQuotaError(model string, retryAfter int) *ImportError {
	return &ImportError{Code: ErrCodeQuotaExhausted, Model: model, RetryAfter: retryAfter}
}

// NewQuotaExhaustedAll 建立所有模型配額皆耗盡的終端錯誤
func NewQuotaExhaustedAll(tried []string) *ImportError {
	return &ImportError{
		Code:    ErrCodeQuotaExhausted,
		Message: fmt.Sprintf("所有模型配額皆已耗盡: %s", strings.Join(tried, ", ")),
	}
}

// NewModelUnavailableError 建立模型不可用錯誤
func NewModelUnavailableError(model string, err error) *ImportError {
	return &ImportError{
		Code:    ErrCodeModelUnavailable,
		Model:   model,
		Message: fmt.Sprintf("模型不可用（%s），請改用其他模型", model),
		Err:     err,
	}
}

// NewOverloadedError 建立供應商過載錯誤
func NewOverloadedError(model string, err error) *ImportError {
	return &ImportError{
		Code:    ErrCodeProviderOverload,
		Model:   model,
		Message: "AI 服務過載，請稍後再試",
		Err:     err,
	}
}

// NewMalformedResponseError 建立回應解析失敗錯誤
func NewMalformedResponseError(err error) *ImportError {
	return &ImportError{
		Code:    ErrCodeMalformedResponse,
		Message: "AI 回應不是有效的 JSON",
		Err:     err,
	}
}

// NewBackendUnreachableError 建立後端連線失敗錯誤
func NewBackendUnreachableError(url string, err error) *ImportError {
	return &ImportError{
		Code:    ErrCodeBackendUnreachable,
		Message: fmt.Sprintf("無法連線到食譜後端 (%s)", url),
		Err:     err,
	}
}

// NewBackendTimeoutError 建立後端超時錯誤
func NewBackendTimeoutError(err error) *ImportError {
	return &ImportError{
		Code:    ErrCodeBackendTimeout,
		Message: "食譜後端請求超時",
		Err:     err,
	}
}

// NewBackendRejectedError 建立後端拒絕錯誤，訊息保留狀態碼與回應內容
func NewBackendRejectedError(status int, body string) *ImportError {
	return &ImportError{Code: ErrCodeBackendRejected, Status: status, Body: body}
}

// NewMediaProcessingError 建立媒體處理失敗錯誤
func NewMediaProcessingError(message string, err error) *ImportError {
	return &ImportError{Code: ErrCodeMediaProcessing, Message: message, Err: err}
}

// NewProviderError 建立未分類的供應商錯誤
func NewProviderError(model string, err error) *ImportError {
	return &ImportError{
		Code:    ErrCodeInternalError,
		Model:   model,
		Message: "AI 服務錯誤",
		Err:     err,
	}
}

// IsQuotaError 檢查是否為配額耗盡錯誤
func IsQuotaError(err error) bool {
	return HasErrorCode(err, ErrCodeQuotaExhausted)
}

// HasErrorCode 檢查錯誤鏈中是否包含指定代碼的 ImportError
func HasErrorCode(err error, code string) bool {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

// HTTPStatus 回傳錯誤對應的 HTTP 狀態碼（API 層使用）
func (e *ImportError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeQuotaExhausted, ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrCodeInvalidRequest, ErrCodeModelUnavailable:
		return http.StatusBadRequest
	case ErrCodeMalformedResponse:
		return http.StatusBadGateway // AI 回應問題屬上游錯誤
	case ErrCodeMediaProcessing:
		return http.StatusUnprocessableEntity
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeBackendUnreachable, ErrCodeProviderOverload:
		return http.StatusServiceUnavailable
	case ErrCodeBackendTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeBackendRejected:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError 表示請求驗證錯誤
type ValidationError struct {
	message string
}

// Error 實現 error 介面
func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{message: message}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// 快取相關錯誤（由快取模組使用）
var (
	ErrCacheDisabled = errors.New("cache disabled")
	ErrCacheMiss     = errors.New("cache miss")
	ErrCacheFull     = errors.New("cache full")
)
