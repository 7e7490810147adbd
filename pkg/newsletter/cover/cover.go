// Package cover renders the default cover image used when a newsletter is
// published without one.
package cover

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600

	titleSize   = 48
	captionSize = 24
	lineHeight  = 60
	sideMargin  = 80
	dotCount    = 20
	jpegQuality = 90
)

var (
	gradientTop    = color.RGBA{0x1e, 0x40, 0xaf, 0xff}
	gradientMiddle = color.RGBA{0x3b, 0x82, 0xf6, 0xff}
	gradientBottom = color.RGBA{0x1d, 0x4e, 0xd8, 0xff}

	dotColor     = color.NRGBA{255, 255, 255, 26}
	captionColor = color.NRGBA{255, 255, 255, 204}
)

// Captions printed under the title per edition.
var captions = map[newsletter.Language]string{
	newsletter.LanguageKorean:  "한국어판",
	newsletter.LanguageEnglish: "English Edition",
}

// Caption returns the edition label drawn at the bottom of the cover.
func Caption(lang newsletter.Language) string {
	if c, ok := captions[lang]; ok {
		return c
	}
	return captions[newsletter.LanguageEnglish]
}

// Renderer draws cover images. Faces are not safe for concurrent use, so
// Render serializes on a mutex.
type Renderer struct {
	mu      sync.Mutex
	width   int
	height  int
	title   font.Face
	caption font.Face
	rand    *rand.Rand

	fontData []byte
	fontPath string
}

// Option configures a Renderer
type Option func(*Renderer)

// WithSize overrides the 800x600 canvas
func WithSize(width, height int) Option {
	return func(r *Renderer) {
		r.width = width
		r.height = height
	}
}

// WithRand injects the source used for the background dots
func WithRand(rnd *rand.Rand) Option {
	return func(r *Renderer) {
		r.rand = rnd
	}
}

// WithFontFile loads a TTF/OTF font from disk instead of Go Bold
func WithFontFile(path string) Option {
	return func(r *Renderer) {
		r.fontPath = path
	}
}

// WithFont uses raw TTF/OTF data instead of Go Bold
func WithFont(data []byte) Option {
	return func(r *Renderer) {
		r.fontData = data
	}
}

// New creates a Renderer
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{
		width:    DefaultWidth,
		height:   DefaultHeight,
		fontData: gobold.TTF,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.width <= 2*sideMargin || r.height <= 0 {
		return nil, fmt.Errorf("invalid cover size %dx%d", r.width, r.height)
	}
	if r.rand == nil {
		r.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if r.fontPath != "" {
		data, err := os.ReadFile(r.fontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		r.fontData = data
	}

	f, err := opentype.Parse(r.fontData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	if r.title, err = newFace(f, titleSize); err != nil {
		return nil, err
	}
	if r.caption, err = newFace(f, captionSize); err != nil {
		return nil, err
	}
	return r, nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// Render returns a JPEG cover for title in the given edition.
func (r *Renderer) Render(title string, lang newsletter.Language) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	r.drawGradient(img)
	r.drawDots(img)

	cx := r.width / 2
	lines := Wrap(r.title, title, r.width-sideMargin)
	startY := r.height/2 - (len(lines)-1)*lineHeight/2
	for i, line := range lines {
		drawCentered(img, r.title, line, cx, startY+i*lineHeight, color.White)
	}
	drawCentered(img, r.caption, Caption(lang), cx, r.height-50, captionColor)

	drawBook(img, float32(cx))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

// Wrap breaks title on spaces so that no line wider than maxWidth is
// produced, except a single word that alone exceeds it.
func Wrap(face font.Face, title string, maxWidth int) []string {
	limit := fixed.I(maxWidth)
	var lines []string
	current := ""
	for _, word := range strings.Fields(title) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if current != "" && font.MeasureString(face, candidate) > limit {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	return append(lines, current)
}

func (r *Renderer) drawGradient(img *image.RGBA) {
	h := r.height - 1
	if h == 0 {
		h = 1
	}
	for y := 0; y < r.height; y++ {
		t := float64(y) / float64(h)
		var c color.RGBA
		if t <= 0.5 {
			c = lerp(gradientTop, gradientMiddle, t*2)
		} else {
			c = lerp(gradientMiddle, gradientBottom, (t-0.5)*2)
		}
		draw.Draw(img, image.Rect(0, y, r.width, y+1), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xff}
}

func (r *Renderer) drawDots(img *image.RGBA) {
	for i := 0; i < dotCount; i++ {
		x := float32(r.rand.Float64() * float64(r.width))
		y := float32(r.rand.Float64() * float64(r.height))
		radius := float32(r.rand.Float64()*3 + 1)

		z := vector.NewRasterizer(r.width, r.height)
		addCircle(z, x, y, radius)
		z.Draw(img, img.Bounds(), image.NewUniform(dotColor), image.Point{})
	}
}

// addCircle approximates a circle with four cubic curves.
func addCircle(z *vector.Rasterizer, cx, cy, radius float32) {
	const k = 0.5523
	d := radius * k
	z.MoveTo(cx+radius, cy)
	z.CubeTo(cx+radius, cy+d, cx+d, cy+radius, cx, cy+radius)
	z.CubeTo(cx-d, cy+radius, cx-radius, cy+d, cx-radius, cy)
	z.CubeTo(cx-radius, cy-d, cx-d, cy-radius, cx, cy-radius)
	z.CubeTo(cx+d, cy-radius, cx+radius, cy-d, cx+radius, cy)
	z.ClosePath()
}

// drawCentered draws text centered horizontally on cx with its middle on cy.
func drawCentered(img *image.RGBA, face font.Face, text string, cx, cy int, c color.Color) {
	width := font.MeasureString(face, text)
	metrics := face.Metrics()
	baseline := fixed.I(cy) + (metrics.Ascent-metrics.Descent)/2

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(cx) - width/2, Y: baseline},
	}
	d.DrawString(text)
}

// drawBook strokes the book glyph above the title: a 40x50 outline with
// three page lines, 3px wide.
func drawBook(img *image.RGBA, cx float32) {
	const half = 1.5
	rects := [][4]float32{
		// outline
		{cx - 20 - half, 80 - half, cx + 20 + half, 80 + half},
		{cx - 20 - half, 130 - half, cx + 20 + half, 130 + half},
		{cx - 20 - half, 80 - half, cx - 20 + half, 130 + half},
		{cx + 20 - half, 80 - half, cx + 20 + half, 130 + half},
		// pages
		{cx - 15, 90 - half, cx + 15, 90 + half},
		{cx - 15, 100 - half, cx + 15, 100 + half},
		{cx - 15, 110 - half, cx + 15, 110 + half},
	}

	b := img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	for _, rc := range rects {
		z.MoveTo(rc[0], rc[1])
		z.LineTo(rc[2], rc[1])
		z.LineTo(rc[2], rc[3])
		z.LineTo(rc[0], rc[3])
		z.ClosePath()
	}
	z.Draw(img, b, image.NewUniform(color.White), image.Point{})
}
