package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/xiaoha/batterywidget/pkg/types"
)

const (
	surfaceSize = 160
	ringCenterY = 62
	ringRadius  = 44
	ringWidth   = 8
	logoSize    = 20
	margin      = 8
)

var (
	inkLight = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	inkDark  = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
)

// PNG draws display states as small square images, one file per
// instance under dir. The bitmap font is ASCII-only, so text is always
// English.
type PNG struct {
	dir  string
	logo *Logo
	text Formatter
}

func NewPNG(dir string, logo *Logo, loc *time.Location) *PNG {
	return &PNG{
		dir:  dir,
		logo: logo,
		text: NewFormatter(loc, LanguageEnglish),
	}
}

// Path returns the file an instance is rendered to.
func (p *PNG) Path(id types.InstanceID) string {
	return filepath.Join(p.dir, "widget-"+id.String()+".png")
}

// Render writes the surface of id. Failures are logged, never returned;
// a stale image is preferable to a crashed host.
func (p *PNG) Render(id types.InstanceID, s types.DisplayState) {
	b, err := p.Encode(s)
	if err != nil {
		logrus.WithField("instance", id).Errorf("failed to encode widget surface: %v", err)
		return
	}

	path := p.Path(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		logrus.WithField("instance", id).Errorf("failed to write widget surface: %v", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		logrus.WithField("instance", id).Errorf("failed to replace widget surface: %v", err)
	}
}

// Remove deletes the rendered file of id, if any.
func (p *PNG) Remove(id types.InstanceID) {
	if err := os.Remove(p.Path(id)); err != nil && !os.IsNotExist(err) {
		logrus.WithField("instance", id).Warnf("failed to remove widget surface: %v", err)
	}
}

// Encode draws s and returns it as PNG bytes.
func (p *PNG) Encode(s types.DisplayState) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Draw(s)); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}

// Draw paints s onto a new image.
func (p *PNG) Draw(s types.DisplayState) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, surfaceSize, surfaceSize))
	bg := Background(s)
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	ink := inkLight
	if s.Kind == types.DisplayOk {
		ink = inkDark
	}

	percentage := 0
	if s.Kind == types.DisplayOk {
		percentage = s.Percentage
	}
	drawRing(img, surfaceSize/2, ringCenterY, ringRadius, ringWidth, percentage, ink, mix(bg, ink, 0.3))

	t := p.text.Texts(s)
	drawCentered(img, t.Headline, surfaceSize/2, ringCenterY+5, ink)

	if s.Kind != types.DisplayOk {
		return img
	}

	p.drawLogo(img)
	drawRight(img, t.BatteryID, surfaceSize-margin, surfaceSize-margin-16, ink)
	drawRight(img, t.Updated, surfaceSize-margin, surfaceSize-margin-2, ink)

	return img
}

func (p *PNG) drawLogo(dst *image.RGBA) {
	if p.logo == nil {
		return
	}
	logo, err := p.logo.Image()
	if err != nil {
		logrus.Warnf("failed to load logo: %v", err)
		return
	}
	rect := image.Rect(margin, surfaceSize-margin-logoSize, margin+logoSize, surfaceSize-margin)
	xdraw.CatmullRom.Scale(dst, rect, logo, logo.Bounds(), xdraw.Over, nil)
}

// drawRing strokes a full track in bg and an arc in fg, starting at 12
// o'clock and running clockwise for percentage of the circle.
func drawRing(img *image.RGBA, cx, cy, radius, width, percentage int, fg, bg color.RGBA) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	sweep := float64(percentage) / 100 * 2 * math.Pi
	inner := float64(radius) - float64(width)/2
	outer := float64(radius) + float64(width)/2

	for y := cy - radius - width; y <= cy+radius+width; y++ {
		for x := cx - radius - width; x <= cx+radius+width; x++ {
			dx := float64(x-cx) + 0.5
			dy := float64(y-cy) + 0.5
			d := math.Hypot(dx, dy)
			if d < inner || d > outer {
				continue
			}
			angle := math.Atan2(dx, -dy)
			if angle < 0 {
				angle += 2 * math.Pi
			}
			if percentage > 0 && angle <= sweep {
				img.SetRGBA(x, y, fg)
			} else {
				img.SetRGBA(x, y, bg)
			}
		}
	}
}

func mix(a, b color.RGBA, t float64) color.RGBA {
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x)*(1-t) + float64(y)*t))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 0xff}
}

func newDrawer(img *image.RGBA, c color.RGBA) *font.Drawer {
	return &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
	}
}

func drawCentered(img *image.RGBA, s string, cx, baseline int, c color.RGBA) {
	d := newDrawer(img, c)
	w := d.MeasureString(s)
	d.Dot = fixed.Point26_6{X: fixed.I(cx) - w/2, Y: fixed.I(baseline)}
	d.DrawString(s)
}

func drawRight(img *image.RGBA, s string, right, baseline int, c color.RGBA) {
	if s == "" {
		return
	}
	d := newDrawer(img, c)
	w := d.MeasureString(s)
	d.Dot = fixed.Point26_6{X: fixed.I(right) - w, Y: fixed.I(baseline)}
	d.DrawString(s)
}
