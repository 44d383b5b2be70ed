package fanout

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"sdbooth/internal/pkg/errors"
	"sdbooth/internal/pkg/logger"
)

// ImagePayload is the message clients receive for a finished render.
type ImagePayload struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

func NewImagePayload(url, filename string, data []byte) ImagePayload {
	return ImagePayload{
		Type:     "image",
		URL:      url,
		Filename: filename,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
}

func (p ImagePayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Delivery is the outcome of one send.
type Delivery struct {
	ConnID string
	Err    error
}

// Broadcast sends msg to every open connection concurrently and returns once
// all sends finished. A failed connection is closed and dropped from the
// registry; it never affects the others. Already closed connections are pruned.
func Broadcast(ctx context.Context, reg *Registry, msg []byte, log *logger.Logger) []Delivery {
	if n := reg.pruneClosed(); n > 0 {
		log.Debug("pruned closed connections", "count", n)
	}

	targets := reg.openEntries()
	results := make([]Delivery, len(targets))

	var wg sync.WaitGroup
	for i, e := range targets {
		wg.Add(1)
		go func(i int, e entry) {
			defer wg.Done()
			results[i] = Delivery{ConnID: e.id}

			if err := e.conn.Send(ctx, msg); err != nil {
				results[i].Err = errors.WrapWithCode(err, errors.CodeDelivery, "fanout.send", "send failed").
					WithField("conn_id", e.id)
				log.WithConnID(e.id).Warn("delivery failed", "error", err.Error())

				reg.Remove(e.id)
				_ = e.conn.Close()
			}
		}(i, e)
	}
	wg.Wait()

	return results
}

// Failed counts deliveries that returned an error.
func Failed(ds []Delivery) int {
	n := 0
	for _, d := range ds {
		if d.Err != nil {
			n++
		}
	}
	return n
}
