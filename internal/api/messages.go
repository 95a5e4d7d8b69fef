// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jeranaias/parley-tui/internal/model"
)

type messagesData struct {
	Messages []model.Message `json:"messages"`
}

type messageData struct {
	Message *model.Message `json:"message"`
}

// Messages returns the full history with peerID in server order.
func (c *Client) Messages(ctx context.Context, peerID string) ([]model.Message, error) {
	var resp envelope[messagesData]
	if err := c.do(ctx, http.MethodGet, "/messages"+segment(peerID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Messages, nil
}

// SendMessage posts a payload to peerID and returns the stored message.
func (c *Client) SendMessage(ctx context.Context, peerID string, payload model.Payload) (*model.Message, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	var resp envelope[messageData]
	if err := c.do(ctx, http.MethodPost, "/messages"+segment(peerID), nil, payload.WireBody(), &resp); err != nil {
		return nil, err
	}
	if resp.Data.Message == nil {
		return nil, fmt.Errorf("%w: send returned no message", ErrMalformedResponse)
	}
	return resp.Data.Message, nil
}

// DeleteChats deletes the conversation with forUserID. With onlyForMe the
// peer keeps their copy.
func (c *Client) DeleteChats(ctx context.Context, forUserID string, onlyForMe bool) error {
	body := map[string]any{"onlyForMe": onlyForMe, "forUserId": forUserID}
	return c.do(ctx, http.MethodPatch, "/messages/deleteMany", nil, body, nil)
}
