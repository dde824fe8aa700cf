package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"

	"github.com/bayerngomez/retouchlab/internal/analysis"
	"github.com/bayerngomez/retouchlab/internal/auth"
	"github.com/bayerngomez/retouchlab/internal/gemini"
	"github.com/bayerngomez/retouchlab/internal/quota"
	"github.com/bayerngomez/retouchlab/internal/report"
	"github.com/bayerngomez/retouchlab/internal/session"
	"github.com/go-chi/chi/v5"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// maxImageBytes bounds uploads; the upstream API rejects much smaller
// payloads anyway.
const maxImageBytes = 10 << 20

type LoginRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type GuestRequest struct {
	Phone string `json:"phone"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	Expiry    string `json:"expiry,omitempty"`
	Remaining int    `json:"remaining_trials,omitempty"`
}

type AnalyzeRequest struct {
	Mode string `json:"mode"`
	Note string `json:"note"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// LoginHandler authenticates a VIP account and issues a session token.
func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	sess, err := api.gate.Authenticate(req.Phone, req.Code)
	if err != nil {
		var expired *auth.MembershipExpiredError
		switch {
		case errors.Is(err, auth.ErrInvalidPhoneFormat):
			writeError(w, http.StatusBadRequest, "手机号格式不正确，请输入11位手机号")
		case errors.As(err, &expired):
			writeError(w, http.StatusForbidden,
				fmt.Sprintf("会员已于 %s 过期，请续费后再登录", expired.Expiry.Format("2006-01-02")))
		default:
			writeError(w, http.StatusUnauthorized, "手机号或访问码错误")
		}
		return
	}

	api.issueToken(w, sess)
}

// GuestTrialHandler grants a bounded guest session.
func (api *Api) GuestTrialHandler(w http.ResponseWriter, r *http.Request) {
	var req GuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	sess, err := api.gate.StartGuestTrial(req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidPhoneFormat):
			writeError(w, http.StatusBadRequest, "手机号格式不正确，请输入11位手机号")
		case errors.Is(err, auth.ErrTrialExhausted):
			writeError(w, http.StatusForbidden, "免费体验次数已用完，开通会员解锁无限分析")
		default:
			log.Printf("Guest trial failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	api.issueToken(w, sess)
}

func (api *Api) issueToken(w http.ResponseWriter, sess *session.Session) {
	token, err := api.tokens.GenerateToken(sess.ID, sess.Phone, string(sess.Role), sess.Expiry)
	if err != nil {
		log.Printf("Error generating token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := AuthResponse{Token: token, Role: string(sess.Role)}
	switch sess.Role {
	case session.RoleVIP:
		resp.Expiry = sess.Expiry.Format("2006-01-02")
	case session.RoleGuest:
		if rec, err := api.ledger.Peek(sess.Phone); err == nil {
			resp.Remaining = quota.MaxTotal - rec.Total
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// LogoutHandler destroys the session.
func (api *Api) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := api.sessions.Delete(sess.ID); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImageHandler sets the session's current image from a multipart form.
// Exactly one of the "file" (upload) or "capture" (camera) parts must be
// present; the chosen source replaces any previous one.
func (api *Api) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	upload, _, uploadErr := r.FormFile("file")
	capture, _, captureErr := r.FormFile("capture")
	if uploadErr == nil && captureErr == nil {
		writeError(w, http.StatusBadRequest, "上传和拍摄只能二选一")
		return
	}

	var src io.ReadCloser
	var kind session.ImageKind
	switch {
	case uploadErr == nil:
		src, kind = upload, session.ImageUploaded
	case captureErr == nil:
		src, kind = capture, session.ImageCaptured
	default:
		writeError(w, http.StatusBadRequest, "缺少图片文件")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "图片读取失败，请换一张图试试")
		return
	}
	if len(data) > maxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "图片太大，请压缩后重试")
		return
	}

	// Decode failure reports per-upload and leaves session state untouched.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("图片加载失败，请换一张图试试。错误：%v", err))
		return
	}

	sess.SetImage(kind, data)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"format": format,
		"width":  cfg.Width,
		"height": cfg.Height,
	})
}

// ClearImageHandler resets the image selection and the current report.
func (api *Api) ClearImageHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	sess.ClearImage()
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeHandler runs one analysis on the current image.
func (api *Api) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	rec, err := api.analysis.Analyze(r.Context(), sess, req.Mode, req.Note)
	if err != nil {
		api.writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// writeAnalysisError maps the analysis error taxonomy onto user-facing
// messages, mirroring the original UI's wording.
func (api *Api) writeAnalysisError(w http.ResponseWriter, err error) {
	var upstream *gemini.UpstreamError
	switch {
	case errors.Is(err, analysis.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, "未知的分析模式")
	case errors.Is(err, analysis.ErrNoImage):
		writeError(w, http.StatusBadRequest, "请先上传或拍摄一张照片")
	case errors.Is(err, quota.ErrTotalExhausted):
		writeError(w, http.StatusForbidden, "免费体验次数已用完，开通会员解锁无限分析")
	case errors.Is(err, quota.ErrProExhausted):
		writeError(w, http.StatusForbidden, "Pro 模式免费体验仅限1次，试试极速模式或开通会员")
	case errors.Is(err, gemini.ErrModelUnavailable):
		writeError(w, http.StatusBadGateway, "当前模型暂不可用，请切换模式后重试")
	case errors.Is(err, gemini.ErrQuotaExhausted):
		writeError(w, http.StatusTooManyRequests, "原因：免费额度已用完 (429 Error)。请明天再试，或切换回极速模式")
	case errors.Is(err, gemini.ErrPermissionDenied):
		writeError(w, http.StatusBadGateway, "API Key 无效或无权限，请联系管理员")
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, fmt.Sprintf("分析失败。详细错误信息：%s", upstream.Message))
	default:
		log.Printf("Analysis failed: %v", err)
		writeError(w, http.StatusInternalServerError, "分析失败，请稍后重试")
	}
}

// ModesHandler lists the available analysis modes for the UI selector.
func (api *Api) ModesHandler(w http.ResponseWriter, r *http.Request) {
	type modeInfo struct {
		Mode        string `json:"mode"`
		Model       string `json:"model"`
		StatusLabel string `json:"status_label"`
	}
	var out []modeInfo
	for _, m := range []analysis.Mode{analysis.ModeDaily, analysis.ModePro} {
		cfg, err := api.analysis.ResolveMode(string(m))
		if err != nil {
			continue
		}
		out = append(out, modeInfo{Mode: string(cfg.Mode), Model: cfg.ModelID, StatusLabel: cfg.StatusLabel})
	}
	writeJSON(w, http.StatusOK, out)
}

// HistoryHandler returns the session history, oldest first.
func (api *Api) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sess.History())
}

// ListFavoritesHandler returns the favorites list.
func (api *Api) ListFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sess.Favorites())
}

// AddFavoriteHandler copies a record from history into favorites.
func (api *Api) AddFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	recordID := chi.URLParam(r, "recordID")

	rec, err := api.analysis.Favorite(sess, recordID)
	if err != nil {
		writeError(w, http.StatusNotFound, "记录不存在")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ExportHandler renders the current report as an HTML download.
func (api *Api) ExportHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	rec, _ := sess.Report()
	if rec == nil {
		writeError(w, http.StatusNotFound, "没有可导出的报告，请先完成一次分析")
		return
	}

	img := sess.Image()
	var imgMIME string
	if len(img.Data) > 0 {
		imgMIME = http.DetectContentType(img.Data)
	}
	doc, err := report.Render(rec.ReportText, sess.Note(), img.Data, imgMIME)
	if err != nil {
		log.Printf("Report render failed: %v", err)
		writeError(w, http.StatusInternalServerError, "报告导出失败")
		return
	}

	if api.archiver != nil {
		key := fmt.Sprintf("reports/%s/%s.html", sess.Phone, rec.ID)
		if err := api.archiver.Archive(r.Context(), key, doc.Bytes, doc.MIME); err != nil {
			log.Printf("Report archive failed: %v", err)
		}
	}

	w.Header().Set("Content-Type", doc.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report-%s.html"`, rec.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Bytes)
}

// QuotaHandler reports the remaining trial uses.
func (api *Api) QuotaHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	if sess.Role == session.RoleVIP {
		writeJSON(w, http.StatusOK, map[string]interface{}{"unlimited": true})
		return
	}
	rec, err := api.ledger.Peek(sess.Phone)
	if err != nil {
		log.Printf("Ledger read failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"unlimited":       false,
		"total_used":      rec.Total,
		"total_remaining": quota.MaxTotal - rec.Total,
		"pro_used":        rec.Pro,
		"pro_remaining":   quota.MaxPro - rec.Pro,
	})
}

// PrefsHandler updates UI preferences (theme toggle).
func (api *Api) PrefsHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	var prefs session.Prefs
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	sess.SetPrefs(prefs)
	writeJSON(w, http.StatusOK, sess.GetPrefs())
}
