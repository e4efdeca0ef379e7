// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jeranaias/courier-tui/internal/model"
	"github.com/jeranaias/courier-tui/internal/util"
)

// DefaultHistoryLimit caps how many messages a history fetch returns when
// the caller does not specify a limit.
const DefaultHistoryLimit = 200

// MaxHistoryResponseSize bounds the history response body.
// SECURITY: response size limit prevents memory exhaustion.
const MaxHistoryResponseSize = 10 * 1024 * 1024

// historyResponse is the wire shape of the history endpoint.
type historyResponse struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// FetchHistory returns up to limit most recent messages of a conversation,
// oldest first. A limit <= 0 selects DefaultHistoryLimit.
//
// Used by both history load and the background refresh poller.
func (c *Client) FetchHistory(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("fetch history: empty conversation id")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	endpoint := c.baseURL + historyPathPrefix + url.PathEscape(conversationID) +
		"/messages?limit=" + util.IntToString(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Classify(fmt.Errorf("fetch history: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxHistoryResponseSize))
	if err != nil {
		return nil, Classify(fmt.Errorf("fetch history: read body: %w", err))
	}

	var parsed historyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("fetch history: decode response: %w", err)
	}

	messages := make([]*model.Message, 0, len(parsed.Messages))
	for _, m := range parsed.Messages {
		role := model.RoleAssistant
		if m.Role == string(model.RoleUser) {
			role = model.RoleUser
		}
		msg := model.NewHistoryMessage(role, m.Content)
		msg.ConversationID = conversationID
		messages = append(messages, msg)
	}
	return messages, nil
}
