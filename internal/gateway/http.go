package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "tebnegar/client/internal/errors"
	"tebnegar/client/internal/model"
)

type httpGateway struct {
	client  *http.Client
	baseURL string
}

// NewHTTP builds a Gateway over the versioned HTTP API at baseURL
// (e.g. "http://127.0.0.1:8000/api/v1").
func NewHTTP(baseURL string, timeout time.Duration) Gateway {
	return &httpGateway{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (g *httpGateway) CreateSession(ctx context.Context, in model.SessionCreate) (model.NewSession, error) {
	var out model.NewSession
	err := g.do(ctx, http.MethodPost, "/sessions/", in, &out)
	return out, err
}

func (g *httpGateway) EndSession(ctx context.Context, sessionID string) error {
	return g.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/end", nil, nil)
}

func (g *httpGateway) ListConversations(ctx context.Context, sessionID string) ([]model.Conversation, error) {
	var out []model.Conversation
	err := g.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(sessionID), nil, &out)
	return out, err
}

func (g *httpGateway) CreateConversation(ctx context.Context, sessionID string) (model.Conversation, error) {
	body := map[string]string{"session_id": sessionID}
	var out model.Conversation
	err := g.do(ctx, http.MethodPost, "/conversations/", body, &out)
	return out, err
}

func (g *httpGateway) RenameConversation(ctx context.Context, conversationID, title string) error {
	body := map[string]string{"title": title}
	return g.do(ctx, http.MethodPatch, "/conversations/"+url.PathEscape(conversationID), body, nil)
}

func (g *httpGateway) DeleteConversation(ctx context.Context, conversationID string) error {
	return g.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(conversationID), nil, nil)
}

func (g *httpGateway) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	// The transcript endpoint wraps messages and names the author field
	// sender_type; both are mapped to the domain shape here.
	var out struct {
		Messages []struct {
			ID         string `json:"id"`
			SenderType string `json:"sender_type"`
			Content    string `json:"content"`
		} `json:"messages"`
	}
	if err := g.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	messages := make([]model.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		role := model.RoleAssistant
		if strings.EqualFold(m.SenderType, model.RoleUser) {
			role = model.RoleUser
		}
		messages = append(messages, model.Message{ID: m.ID, Role: role, Content: m.Content})
	}
	return messages, nil
}

func (g *httpGateway) PostMessage(ctx context.Context, conversationID, content string) (model.Message, error) {
	body := map[string]string{"content": content}
	var out struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}
	if err := g.do(ctx, http.MethodPost, "/messages/"+url.PathEscape(conversationID), body, &out); err != nil {
		return model.Message{}, err
	}
	return model.Message{ID: out.ID, Role: model.RoleAssistant, Content: out.Content}, nil
}

func (g *httpGateway) PostFeedback(ctx context.Context, messageID string, feedback model.Feedback) error {
	return g.do(ctx, http.MethodPost, "/response-feedback/"+url.PathEscape(messageID), feedback, nil)
}

// do runs one round trip: marshal body, send, categorize the status, decode
// the response into out when out is non-nil.
func (g *httpGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := categorize(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: could not decode response: %v", apperrors.ErrServer, err)
	}
	return nil
}

// categorize maps a non-2xx response onto the sentinel taxonomy. 401, 403,
// 404 and 410 all mean the stored identifier is unknown to the server; 400
// and 422 are validation refusals that carry a reason worth surfacing.
func categorize(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w (status %d)", apperrors.ErrInvalidSession, resp.StatusCode)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", apperrors.ErrRejected, rejectionReason(resp.Body))
	default:
		return fmt.Errorf("%w (status %d)", apperrors.ErrServer, resp.StatusCode)
	}
}

// rejectionReason extracts the server's explanation from a validation
// failure body, tolerating both {"detail": ...} and {"error": ...} shapes.
func rejectionReason(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "no reason given"
	}
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		var detail string
		if json.Unmarshal(parsed.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if len(parsed.Detail) > 0 {
			return string(parsed.Detail)
		}
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return "no reason given"
}
