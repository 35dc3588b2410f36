package httpapi

import (
	"bizdesk/internal/auth"
	"bizdesk/internal/blob"
	"bizdesk/internal/export"
	"bizdesk/internal/notify"
	"bizdesk/internal/settings"
	"bizdesk/pkg/domain"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, user, err := h.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.gate.SetCookie(w, sess)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful", "user": user})
}

func (h *Handler) handleDemoLogin(w http.ResponseWriter, r *http.Request) {
	sess, user, err := h.auth.DemoLogin(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.gate.SetCookie(w, sess)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged in as demo user", "user": user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(auth.Token(r))
	h.gate.ClearCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	_, user, ok := h.auth.Check(r.Context(), auth.Token(r))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"logged_in": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logged_in": true, "user": user})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// userID parses the {id} segment of the settings and reminder routes.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, domain.NotFoundError{Entity: domain.EntityUser})
		return 0, false
	}
	return id, true
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.settings.Get(r.Context(), id))
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var in settings.Record
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, h.settings.Update(r.Context(), id, in))
}

func (h *Handler) handleTestReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	to := h.settings.Get(r.Context(), id).EmailForNotifications
	message, err := notify.SendTestReminder(r.Context(), h.mailer, to, h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, message)
}

func (h *Handler) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	record, err := h.exports.Enqueue(r.Context(), sess.Username)
	if err != nil {
		if errors.Is(err, export.ErrQueueFull) {
			writeMessage(w, http.StatusServiceUnavailable, "Export queue is full, try again later")
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"message": "Export queued", "export": record})
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	record, ok := h.exports.Get(chi.URLParam(r, "exportID"))
	if !ok {
		writeMessage(w, http.StatusNotFound, "Export not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleListExports(w http.ResponseWriter, r *http.Request) {
	archives, err := h.exports.Archives(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if archives == nil {
		archives = []blob.Info{}
	}
	writeJSON(w, http.StatusOK, archives)
}

func (h *Handler) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	info, rc, err := h.exports.Open(r.Context(), chi.URLParam(r, "exportID"))
	if errors.Is(err, export.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Export not found")
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(info.Key)+`"`)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "export download interrupted", "key", info.Key, "error", err)
	}
}
