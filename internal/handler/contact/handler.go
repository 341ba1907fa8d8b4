package contact

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agromic/agrobot/backend/internal/model/contact"
	contactService "github.com/agromic/agrobot/backend/internal/service/contact"
	"github.com/agromic/agrobot/backend/pkg/utils"
)

// Handler 联系表单的HTTP处理器
type Handler struct {
	contactSvc *contactService.Service
}

// New 创建联系表单处理器
func New(contactSvc *contactService.Service) *Handler {
	return &Handler{contactSvc: contactSvc}
}

// RegisterRoutes 注册联系表单相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/contact", h.handleSubmit)
	r.Get("/contact/options", h.handleOptions)
	r.Get("/contact/{formID}", h.handleState)
}

type submitRequest struct {
	FormID string `json:"formId"`
	contact.Inquiry
}

// handleSubmit 校验并模拟提交表单
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload submitRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.contactSvc.Submit(r.Context(), payload.FormID, payload.Inquiry)
	switch {
	case errors.Is(err, contactService.ErrFormBusy):
		utils.RespondJSON(w, http.StatusConflict, outcome)
		return
	case err != nil:
		// 客户端已断开
		slog.Debug("contact submission aborted", "form_id", outcome.FormID, "error", err)
		utils.RespondError(w, http.StatusServiceUnavailable, "submission aborted")
		return
	}

	if len(outcome.Errors) > 0 {
		utils.RespondJSON(w, http.StatusUnprocessableEntity, outcome)
		return
	}
	utils.RespondJSON(w, http.StatusOK, outcome)
}

// handleState 返回表单当前状态
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	utils.RespondJSON(w, http.StatusOK, contact.Outcome{
		FormID: formID,
		State:  h.contactSvc.State(formID),
	})
}

// handleOptions 返回下拉框选项
func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string][]string{
		"inquiryTypes": contact.InquiryTypes,
		"cropTypes":    contact.CropTypes,
	})
}
