package transport

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/vectorize-mcp/internal/convert"
	"github.com/ironsheep/vectorize-mcp/internal/imaging"
	"github.com/ironsheep/vectorize-mcp/internal/trace"
	"github.com/ironsheep/vectorize-mcp/internal/transport/middleware"
)

// formOverhead is the body allowance on top of the file for the multipart
// envelope and the parameter fields.
const formOverhead = 1 << 20

// TracerStatus reports on the tracer backing the service.
type TracerStatus interface {
	Name() string
	Available() bool
}

// ConvertHandler serves the conversion and health routes.
type ConvertHandler struct {
	svc     *convert.Service
	tracer  TracerStatus
	version string
	log     logrus.FieldLogger
}

// NewConvertHandler creates a handler. tracer may be nil, in which case
// /health omits the tracer block.
func NewConvertHandler(svc *convert.Service, tracer TracerStatus, version string, log logrus.FieldLogger) *ConvertHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ConvertHandler{svc: svc, tracer: tracer, version: version, log: log}
}

// MaxBodyBytes is the largest request body the convert route reads.
func (h *ConvertHandler) MaxBodyBytes() int64 {
	return h.svc.Guard().Limits().MaxUploadBytes + formOverhead
}

// convertForm holds the optional parameter fields of POST /api/convert.
// Absent fields keep their defaults.
type convertForm struct {
	Threshold    *int     `form:"threshold"`
	TurdSize     *int     `form:"turdSize"`
	OptTolerance *float64 `form:"optTolerance"`
	TurnPolicy   string   `form:"turnPolicy"`
	LineColor    string   `form:"lineColor"`
	Invert       bool     `form:"invert"`
	Transparent  *bool    `form:"transparent"`
	BgColor      string   `form:"bgColor"`
	Preprocess   string   `form:"preprocess"`
	BlurSigma    *float64 `form:"blurSigma"`
	EdgeBoost    *float64 `form:"edgeBoost"`
}

func (f convertForm) apply(req *convert.Request) {
	if f.Threshold != nil {
		req.Params.Threshold = *f.Threshold
	}
	if f.TurdSize != nil {
		req.Params.TurdSize = *f.TurdSize
	}
	if f.OptTolerance != nil {
		req.Params.OptTolerance = *f.OptTolerance
	}
	if f.TurnPolicy != "" {
		req.Params.TurnPolicy = trace.TurnPolicy(f.TurnPolicy)
	}
	if f.LineColor != "" {
		req.Params.LineColor = f.LineColor
	}
	req.Params.Invert = f.Invert
	if f.Transparent != nil {
		req.Background.Transparent = *f.Transparent
	}
	if f.BgColor != "" {
		req.Background.Color = f.BgColor
	}
	req.Preprocess = convert.Preprocess(f.Preprocess)

	if f.BlurSigma != nil || f.EdgeBoost != nil {
		edge := imaging.DefaultEdgeConfig()
		if f.BlurSigma != nil {
			edge.BlurSigma = *f.BlurSigma
		}
		if f.EdgeBoost != nil {
			edge.EdgeBoost = *f.EdgeBoost
		}
		req.Edge = &edge
	}
}

// Convert handles POST /api/convert: a multipart upload with the image in
// the "file" field, answered with {svg, width, height} or {error}.
func (h *ConvertHandler) Convert(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBodyBytes())

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, h.svc.UploadTooLarge())
			return
		}
		h.fail(c, convert.ErrNoFile)
		return
	}

	var form convertForm
	if err := c.ShouldBind(&form); err != nil {
		h.fail(c, &convert.ValidationError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("Invalid form fields: %v.", err),
		})
		return
	}

	data, mime, err := h.readUpload(fh)
	if err != nil {
		h.fail(c, err)
		return
	}

	req := convert.NewRequest(data, mime)
	form.apply(&req)

	res, err := h.svc.Convert(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// readUpload returns the file bytes and their MIME type. The declared
// Content-Type is only trusted when the content sniffs as the same type.
func (h *ConvertHandler) readUpload(fh *multipart.FileHeader) ([]byte, string, error) {
	if fh.Size > h.svc.Guard().Limits().MaxUploadBytes {
		return nil, "", h.svc.UploadTooLarge()
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", convert.ErrNoFile
	}

	sniffed := mimetype.Detect(data)
	declared := fh.Header.Get("Content-Type")
	if declared != "" && sniffed.Is(declared) {
		return data, declared, nil
	}
	return data, sniffed.String(), nil
}

// fail writes err as {error} with its status class. Server-side failures are
// attached to the context so the request logger records them.
func (h *ConvertHandler) fail(c *gin.Context, err error) {
	status := convert.Status(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.log.WithError(err).WithField("request_id", c.GetString(middleware.RequestIDKey)).Error("conversion failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Health handles GET /health.
func (h *ConvertHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"version": h.version,
	}
	if h.tracer != nil {
		body["tracer"] = gin.H{
			"name":      h.tracer.Name(),
			"available": h.tracer.Available(),
		}
	}
	c.JSON(http.StatusOK, body)
}
