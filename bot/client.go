package bot

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// Client is a thin HTTP client for the MAX Bot API. Calls are synchronous;
// GetUpdates blocks up to the long-poll timeout.
type Client struct {
	Token    string
	BaseURL  string
	Logger   *log.Logger
	http     *fasthttp.Client
	pollWait time.Duration
}

func NewClient(token, baseURL string, pollTimeout int, logger *log.Logger) *Client {
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Client{
		Token:    token,
		BaseURL:  baseURL,
		Logger:   logger,
		pollWait: time.Duration(pollTimeout) * time.Second,
		http: &fasthttp.Client{
			ReadTimeout:  time.Duration(pollTimeout+10) * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	query.Set("access_token", c.Token)
	return fmt.Sprintf("%s%s?%s", c.BaseURL, path, query.Encode())
}

func (c *Client) do(method, uri string, body interface{}, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}

	if err := c.http.DoTimeout(req, resp, c.pollWait+15*time.Second); err != nil {
		return err
	}

	if resp.StatusCode() >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(resp.Body(), &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("bot api: %s (%s)", apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("bot api: unexpected status %d", resp.StatusCode())
	}

	if out != nil {
		return json.Unmarshal(resp.Body(), out)
	}
	return nil
}

// GetUpdates long-polls for new updates after the given marker.
func (c *Client) GetUpdates(marker *int64) (*UpdatesResponse, error) {
	query := url.Values{}
	query.Set("timeout", strconv.Itoa(int(c.pollWait/time.Second)))
	if marker != nil {
		query.Set("marker", strconv.FormatInt(*marker, 10))
	}

	var result UpdatesResponse
	if err := c.do(fasthttp.MethodGet, c.endpoint("/updates", query), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendMessage sends a text message with optional keyboard to a user's chat.
func (c *Client) SendMessage(userID int64, text string, attachments []Attachment) (*Message, error) {
	query := url.Values{}
	query.Set("user_id", strconv.FormatInt(userID, 10))

	msg := NewMessage{Text: text, Attachments: attachments, Notify: true}
	var result sendMessageResponse
	if err := c.do(fasthttp.MethodPost, c.endpoint("/messages", query), msg, &result); err != nil {
		return nil, err
	}
	return result.Message, nil
}

// EditMessage replaces the text and keyboard of an existing message.
func (c *Client) EditMessage(messageID, text string, attachments []Attachment) error {
	query := url.Values{}
	query.Set("message_id", messageID)

	msg := NewMessage{Text: text, Attachments: attachments, Notify: false}
	return c.do(fasthttp.MethodPut, c.endpoint("/messages", query), msg, nil)
}

// AnswerCallback acknowledges a callback button press, optionally showing a
// toast notification to the user.
func (c *Client) AnswerCallback(callbackID, notification string) error {
	query := url.Values{}
	query.Set("callback_id", callbackID)

	body := map[string]interface{}{}
	if notification != "" {
		body["notification"] = notification
	}
	return c.do(fasthttp.MethodPost, c.endpoint("/answers", query), body, nil)
}
