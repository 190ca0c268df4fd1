package render

import (
	"fmt"
	"image/color"
	"time"

	"github.com/xiaoha/batterywidget/pkg/types"
)

// ReportTimeLayout renders report times as M/d HH:mm.
const ReportTimeLayout = "1/2 15:04"

// Language selects the message catalogue.
type Language string

const (
	LanguageChinese Language = "zh"
	LanguageEnglish Language = "en"
)

type catalogue struct {
	unconfigured string
	reasons      map[types.Reason]string
}

var catalogues = map[Language]catalogue{
	LanguageChinese: {
		unconfigured: "点击配置",
		reasons: map[types.Reason]string{
			types.ReasonData:    "数据错误",
			types.ReasonNetwork: "网络错误",
			types.ReasonFailed:  "更新失败",
		},
	},
	LanguageEnglish: {
		unconfigured: "Tap to set up",
		reasons: map[types.Reason]string{
			types.ReasonData:    "Data error",
			types.ReasonNetwork: "Network error",
			types.ReasonFailed:  "Update failed",
		},
	},
}

// Texts are the strings drawn on the widget. Error and unconfigured states
// only fill Headline.
type Texts struct {
	Headline  string
	BatteryID string
	Updated   string
}

// Formatter turns display states into user-facing text in a fixed zone
// and language.
type Formatter struct {
	Location *time.Location
	Language Language
}

func NewFormatter(loc *time.Location, lang Language) Formatter {
	if loc == nil {
		loc = time.Local
	}
	if _, ok := catalogues[lang]; !ok {
		lang = LanguageChinese
	}
	return Formatter{Location: loc, Language: lang}
}

func (f Formatter) Texts(s types.DisplayState) Texts {
	cat, ok := catalogues[f.Language]
	if !ok {
		cat = catalogues[LanguageChinese]
	}

	switch s.Kind {
	case types.DisplayOk:
		loc := f.Location
		if loc == nil {
			loc = time.Local
		}
		return Texts{
			Headline:  fmt.Sprintf("%d%%", s.Percentage),
			BatteryID: s.BatteryID,
			Updated:   s.ReportTime().In(loc).Format(ReportTimeLayout),
		}
	case types.DisplayError:
		msg, ok := cat.reasons[s.Reason]
		if !ok {
			msg = cat.reasons[types.ReasonFailed]
		}
		return Texts{Headline: msg}
	default:
		return Texts{Headline: cat.unconfigured}
	}
}

// Band is a charge level colour band.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// BandOf classifies a charge percentage: 60 and above is high, above 20
// is medium, the rest is low.
func BandOf(percentage int) Band {
	switch {
	case percentage >= 60:
		return BandHigh
	case percentage > 20:
		return BandMedium
	default:
		return BandLow
	}
}

var (
	colorBrand  = color.RGBA{R: 0x00, G: 0x88, B: 0xfe, A: 0xff}
	colorHigh   = color.RGBA{R: 0x7b, G: 0xf1, B: 0xa8, A: 0xff}
	colorMedium = color.RGBA{R: 0xfe, G: 0xf9, B: 0xc2, A: 0xff}
	colorLow    = color.RGBA{R: 0xff, G: 0x64, B: 0x67, A: 0xff}
)

// Background returns the widget background for s.
func Background(s types.DisplayState) color.RGBA {
	if s.Kind != types.DisplayOk {
		return colorBrand
	}
	switch BandOf(s.Percentage) {
	case BandHigh:
		return colorHigh
	case BandMedium:
		return colorMedium
	default:
		return colorLow
	}
}
