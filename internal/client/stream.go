package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Watch streams seat map snapshots to fn until ctx ends, fn returns an error
// or the server closes the stream.  A nil return means ctx ended or the
// stream was closed cleanly.
func (c *Client) Watch(ctx context.Context, fn func(Snapshot) error) error {
	res, err := c.do(ctx, http.MethodGet, "/v1/seats/stream", nil, true)
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusUnauthorized && c.Tokens().Refresh != "" {
		res.Body.Close()
		if err := c.refresh(ctx); err != nil {
			return err
		}
		if res, err = c.do(ctx, http.MethodGet, "/v1/seats/stream", nil, true); err != nil {
			return err
		}
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return decode(res, nil)
	}

	sc := bufio.NewScanner(res.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event == "snapshot" && data != "" {
				var snap Snapshot
				if err := json.Unmarshal([]byte(data), &snap); err != nil {
					return err
				}
				if err := fn(snap); err != nil {
					return err
				}
			}
			event, data = "", ""
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
