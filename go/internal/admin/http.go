package admin

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/jung-kurt/gofpdf"
	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const deleteAllUsersMessage = "All users deleted."

const (
	qrSize       = 256
	pageMargin   = 36.0
	strokeWidth  = 2.0
	defaultColor = "#000000"
)

// HTTPHandlers serves the plain HTTP admin and sharing routes
type HTTPHandlers struct {
	ctl       Controller
	publicURL string
}

// NewHTTPHandlers builds the handlers. An empty publicURL makes the QR code
// point at the host the request came in on.
func NewHTTPHandlers(ctl Controller, publicURL string) *HTTPHandlers {
	return &HTTPHandlers{ctl: ctl, publicURL: publicURL}
}

func (h *HTTPHandlers) RegisterRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/delete-all-users", h.DeleteAllUsers)
	router.HandlerFunc(http.MethodGet, "/qr.png", h.JoinQRCode)
	router.HandlerFunc(http.MethodGet, "/canvas.pdf", h.CanvasPDF)
}

// DeleteAllUsers wipes the roster. The route is unauthenticated.
func (h *HTTPHandlers) DeleteAllUsers(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.ResetRoster(r.Context()); err != nil {
		log.Error().Err(err).Msg("failed to delete all users")
		http.Error(w, "failed to delete users", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(deleteAllUsersMessage)); err != nil {
		log.Error().Err(err).Msg("failed to write delete-all-users response")
	}
}

// JoinQRCode renders the join URL as a PNG QR code.
func (h *HTTPHandlers) JoinQRCode(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(h.joinURL(r), qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode QR code")
		http.Error(w, "failed to encode QR code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		log.Error().Err(err).Msg("failed to write QR code")
	}
}

func (h *HTTPHandlers) joinURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, r.Host)
}

// CanvasPDF exports the current canvas as a one-page PDF.
func (h *HTTPHandlers) CanvasPDF(w http.ResponseWriter, r *http.Request) {
	strokes, err := h.ctl.Strokes(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read strokes")
		http.Error(w, "failed to read canvas", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := RenderCanvas(&buf, strokes); err != nil {
		log.Error().Err(err).Int("strokes", len(strokes)).Msg("failed to render canvas")
		http.Error(w, "failed to render canvas", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="canvas.pdf"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error().Err(err).Msg("failed to write canvas")
	}
}

// RenderCanvas draws strokes onto a landscape A4 page, scaled down to fit when
// the drawing is larger than the printable area.
func RenderCanvas(w io.Writer, strokes []models.Stroke) error {
	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.SetTitle("sketchturn canvas", true)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	scale := fitScale(strokes, pageW-2*pageMargin, pageH-2*pageMargin)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.Text(pageMargin, pageMargin-12, fmt.Sprintf("%d strokes", len(strokes)))

	pdf.SetLineWidth(strokeWidth)
	pdf.SetLineCapStyle("round")
	for _, s := range strokes {
		red, green, blue := parseHexColor(s.Color)
		pdf.SetDrawColor(red, green, blue)
		pdf.Line(
			pageMargin+s.X0*scale, pageMargin+s.Y0*scale,
			pageMargin+s.X1*scale, pageMargin+s.Y1*scale,
		)
	}

	return pdf.Output(w)
}

func fitScale(strokes []models.Stroke, width, height float64) float64 {
	var maxX, maxY float64
	for _, s := range strokes {
		maxX = math.Max(maxX, math.Max(s.X0, s.X1))
		maxY = math.Max(maxY, math.Max(s.Y0, s.Y1))
	}
	scale := 1.0
	if maxX > width {
		scale = width / maxX
	}
	if maxY > height {
		scale = math.Min(scale, height/maxY)
	}
	return scale
}

// parseHexColor accepts #rgb and #rrggbb. Anything else renders black.
func parseHexColor(color string) (int, int, int) {
	hex := strings.TrimPrefix(strings.TrimSpace(color), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return parseHexColor(defaultColor)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return parseHexColor(defaultColor)
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
