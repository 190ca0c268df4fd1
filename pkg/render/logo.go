package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// 28x28 brand mark shown in the corner of the widget.
const logoBase64 = "iVBORw0KGgoAAAANSUhEUgAAABwAAAAcCAMAAABF0y+mAAAAbFBMVEUAiP4Ah/4AhP4lj/4Agv4Af/6Qv//////R4/8Aff5Uov7w9//p8/9lqf/I3v/w9f+pzv9srP/4/P+82P+Huf7e6v9xsf99tf640/8ylP6hyf9Hnf6dxv8Ag/7k7/8Aev7X5/8Adv5AmP4RjP7GGMZdAAAA9klEQVR4AdXLBwKDIAxA0QSDwb23VKX3v2MZnUfodzAewJ+Gn1noy0T0WuL3aZKSgGJWAkFImaRZltsnK4S1sqrqpOG47aToq2po2pGbdsomi7KaS7Xwmmy8J3O18pgB6za6BZx2lXUH2dvbPGxccO6fJuCq0rW2TTgPKUMxTrYCIeB5daXNSI9LxcxtSU9UULsKjxGfy2a6m3xhw8MwtOpweB/NSkdeh5vjbpHk1Z0WN76T4a7nBR0OQ9bZ8zpRXdJzySQSwxwT2NCoLpLtWaxcCKzPlPou41iCD4kQzZDlk7ZzKag794XgKxSA+jkXpBF+Q/jzHpg8EYrSfggvAAAAAElFTkSuQmCC"

// Logo lazily decodes the embedded logo once and keeps it until Release.
// The next Image call after Release decodes it again.
type Logo struct {
	mu  sync.Mutex
	img image.Image
}

func NewLogo() *Logo {
	return &Logo{}
}

func (l *Logo) Image() (image.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.img != nil {
		return l.img, nil
	}

	b, err := base64.StdEncoding.DecodeString(logoBase64)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to decode logo base64")
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to decode logo png")
	}
	l.img = img
	return img, nil
}

// Loaded reports whether the decoded image is currently cached.
func (l *Logo) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.img != nil
}

func (l *Logo) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.img = nil
}
