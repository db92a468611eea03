package http

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"EstateGuru/internal/modules/estate/application/dto/request"
	"EstateGuru/internal/modules/estate/application/service"
	"EstateGuru/pkg/back"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IngestHandler 入库接口；asyncSvc 为空时忽略 async 参数
type IngestHandler struct {
	ingestSvc service.IngestService
	asyncSvc  service.AsyncIngestService
	uploadDir string
	maxBytes  int64
}

func NewIngestHandler(ingestSvc service.IngestService, asyncSvc service.AsyncIngestService, uploadDir string, maxBytes int64) *IngestHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &IngestHandler{ingestSvc: ingestSvc, asyncSvc: asyncSvc, uploadDir: uploadDir, maxBytes: maxBytes}
}

// Ingest POST /api/v1/ingest，支持 JSON 和 multipart（字段 file）
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req request.IngestDocumentRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		r, err := h.readMultipart(c)
		if err != nil {
			back.Result(c, nil, err)
			return
		}
		req = *r
	} else if !bindJSON(c, &req) {
		return
	}

	if req.Async && h.asyncSvc != nil {
		data, err := h.asyncSvc.EnqueueDocument(c.Request.Context(), req)
		back.Result(c, data, err)
		return
	}
	data, err := h.ingestSvc.IngestDocument(c.Request.Context(), req)
	back.Result(c, data, err)
}

// Sources GET /api/v1/sources
func (h *IngestHandler) Sources(c *gin.Context) {
	data, err := h.ingestSvc.ListSources(c.Request.Context())
	back.Result(c, data, err)
}

// Stats GET /api/v1/stats
func (h *IngestHandler) Stats(c *gin.Context) {
	data, err := h.ingestSvc.Stats(c.Request.Context())
	back.Result(c, data, err)
}

// Reindex POST /api/v1/reindex 同步扫描上传目录
func (h *IngestHandler) Reindex(c *gin.Context) {
	if h.uploadDir == "" {
		back.Result(c, nil, xerr.Input("upload directory is not configured"))
		return
	}
	data, err := h.ingestSvc.IngestDirectory(c.Request.Context(), h.uploadDir)
	back.Result(c, data, err)
}

func (h *IngestHandler) readMultipart(c *gin.Context) (*request.IngestDocumentRequest, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, xerr.Input("missing file field")
	}
	if fh.Size > h.maxBytes {
		return nil, xerr.Input("file is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, xerr.Input("cannot read uploaded file")
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return nil, xerr.Input("cannot read uploaded file")
	}

	name := filepath.Base(fh.Filename)
	async, _ := strconv.ParseBool(c.PostForm("async"))
	force, _ := strconv.ParseBool(c.PostForm("force"))
	req := &request.IngestDocumentRequest{
		SourceID:     c.PostForm("source_id"),
		Filename:     name,
		Content:      string(raw),
		Locality:     c.PostForm("locality"),
		PropertyType: c.PostForm("property_type"),
		Force:        force,
		Async:        async,
	}
	h.keepUpload(name, raw)
	return req, nil
}

// keepUpload 上传文件落盘到 uploadDir，供定时重建索引使用；失败不影响本次入库
func (h *IngestHandler) keepUpload(name string, raw []byte) {
	if h.uploadDir == "" || name == "" || name == "." || name == string(filepath.Separator) {
		return
	}
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		zlog.Warn("create upload dir failed", zap.String("dir", h.uploadDir), zap.Error(err))
		return
	}
	path := filepath.Join(h.uploadDir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil && !errors.Is(err, os.ErrExist) {
		zlog.Warn("save upload failed", zap.String("path", path), zap.Error(err))
	}
}
