package redis

import (
	"context"
	"encoding/json"
	"fmt"
)

// AppendJSON encodes v into the "data" field of a new stream entry.
func (c *Client) AppendJSON(ctx context.Context, stream string, v interface{}, fields map[string]interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode stream entry: %w", err)
	}
	values := map[string]interface{}{"data": string(data)}
	for k, val := range fields {
		values[k] = val
	}
	id, err := c.XAdd(ctx, stream, values)
	if err != nil {
		return "", fmt.Errorf("append entry: %w", err)
	}
	return id, nil
}

// RecentJSON returns the "data" field of the newest n entries of stream,
// newest first. Entries without data are skipped.
func (c *Client) RecentJSON(ctx context.Context, stream string, n int64) ([]json.RawMessage, error) {
	msgs, err := c.XRevRange(ctx, stream, n)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		msg := Message{ID: m.ID, Stream: stream, Values: m.Values}
		if data := msg.GetData(); data != nil {
			out = append(out, json.RawMessage(data))
		}
	}
	return out, nil
}
