package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorBody 是所有错误响应的 JSON 结构。
type ErrorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// 此时状态码已写出，编码失败只能放弃。
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Error: message})
}

// RespondErrorMessage 发送带上游错误信息的错误响应
func RespondErrorMessage(w http.ResponseWriter, status int, message string, err error) {
	body := ErrorBody{Error: message}
	if err != nil {
		body.Message = err.Error()
	}
	RespondJSON(w, status, body)
}
