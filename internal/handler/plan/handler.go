package plan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/date-night/backend/internal/logger"
	"github.com/zhouzirui/date-night/backend/internal/model/preference"
	"github.com/zhouzirui/date-night/backend/internal/model/session"
	"github.com/zhouzirui/date-night/backend/internal/service/pairing"
	"github.com/zhouzirui/date-night/backend/pkg/utils"
)

// maxBodyBytes 限制请求体大小，偏好记录远小于该值。
const maxBodyBytes = 64 << 10

// PairingService 描述处理器依赖的配对服务能力。
type PairingService interface {
	SubmitFirst(ctx context.Context, prefs preference.Preferences) (string, error)
	SubmitSecond(ctx context.Context, id string, partner preference.Preferences) (string, error)
	Status(ctx context.Context, id string) (session.View, error)
}

// Handler 约会计划的HTTP处理器
type Handler struct {
	svc PairingService
	log *logger.Logger
}

// New 创建约会计划处理器
func New(svc PairingService, log *logger.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With("handler", "plan"),
	}
}

// RegisterRoutes 注册约会计划相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/submit-preferences", h.handleSubmitPreferences)
	r.Post("/generate-plan", h.handleGeneratePlan)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
}

// handleSubmitPreferences 保存第一位伴侣的偏好并返回可分享的会话 ID
func (h *Handler) handleSubmitPreferences(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Preferences preference.Preferences `json:"preferences"`
	}

	if err := decodeBody(w, r, &payload); err != nil {
		utils.RespondErrorMessage(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.svc.SubmitFirst(r.Context(), payload.Preferences)
	if err != nil {
		h.log.Error("failed to store preferences", "error", err.Error())
		utils.RespondError(w, http.StatusInternalServerError, "Failed to store preferences")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"id": id})
}

// handleGeneratePlan 合并第二位伴侣的偏好并返回生成的行程
func (h *Handler) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID                 string                 `json:"id"`
		PartnerPreferences preference.Preferences `json:"partnerPreferences"`
	}

	if err := decodeBody(w, r, &payload); err != nil {
		utils.RespondErrorMessage(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan, err := h.svc.SubmitSecond(r.Context(), payload.ID, payload.PartnerPreferences)
	if err != nil {
		switch {
		case errors.Is(err, pairing.ErrSessionNotFound):
			utils.RespondError(w, http.StatusNotFound, "Preferences not found")
		case errors.Is(err, pairing.ErrGenerationTimeout):
			utils.RespondErrorMessage(w, http.StatusGatewayTimeout, "Plan generation timed out", err)
		default:
			h.log.Error("failed to generate plan", "session_id", payload.ID, "error", err.Error())
			utils.RespondErrorMessage(w, http.StatusInternalServerError, "Failed to generate plan", err)
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"plan": plan})
}

// handleGetSession 返回会话状态，不包含任何一方的偏好
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	view, err := h.svc.Status(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pairing.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
		utils.RespondErrorMessage(w, http.StatusInternalServerError, "Failed to load session", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, view)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
