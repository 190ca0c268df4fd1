package client

import (
	"bufio"
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/events"
)

// SubscribeEvents follows the daemon event stream until ctx is done or
// the daemon goes away. The returned channel is closed then.
func (c *Client) SubscribeEvents(ctx context.Context) <-chan events.Event {
	out := make(chan events.Event, 16)

	go func() {
		defer close(out)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/events", nil)
		if err != nil {
			logrus.Errorf("failed to create events request: %v", err)
			return
		}
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				logrus.Errorf("failed to subscribe to events: %v", err)
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			logrus.Errorf("failed to subscribe to events: got %d", resp.StatusCode)
			return
		}

		parseEvents(ctx, bufio.NewScanner(resp.Body), out)
	}()

	return out
}

// parseEvents reads SSE frames from s. Frames end at a blank line; only
// the event and data fields are used.
func parseEvents(ctx context.Context, s *bufio.Scanner, out chan<- events.Event) {
	var name string
	var data strings.Builder

	for s.Scan() {
		line := s.Text()
		switch {
		case line == "":
			if name != "" || data.Len() > 0 {
				ev := events.Event{Name: name, Data: []byte(data.String())}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			name = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
