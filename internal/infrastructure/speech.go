package infrastructure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

const (
	defaultTokenLifetime = 30 * 24 * time.Hour
	tokenRefreshMargin   = time.Minute
)

// BaiduSpeechClient transcribes WAV audio with the Baidu short speech API.
// The OAuth access token is cached until shortly before it expires.
type BaiduSpeechClient struct {
	config domain.SpeechConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewBaiduSpeechClient creates a new speech client
func NewBaiduSpeechClient(config domain.SpeechConfig, logger *zap.Logger) *BaiduSpeechClient {
	return &BaiduSpeechClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

// Configured reports whether recognition is enabled and has credentials
func (c *BaiduSpeechClient) Configured() bool {
	return c.config.Enabled && c.config.APIKey != "" && c.config.SecretKey != ""
}

type recognitionRequest struct {
	Format  string `json:"format"`
	Rate    int    `json:"rate"`
	Channel int    `json:"channel"`
	CUID    string `json:"cuid"`
	Token   string `json:"token"`
	DevPID  int    `json:"dev_pid"`
	Speech  string `json:"speech"`
	Len     int    `json:"len"`
}

// Recognize implements domain.SpeechRecognizer
func (c *BaiduSpeechClient) Recognize(ctx context.Context, wavPath string) (string, error) {
	if !c.Configured() {
		return "", errors.New("speech recognition is not configured")
	}

	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return "", errors.New("audio file is empty")
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(recognitionRequest{
		Format:  "wav",
		Rate:    16000,
		Channel: 1,
		CUID:    c.config.CUID,
		Token:   token,
		DevPID:  c.config.DevPID,
		Speech:  base64.StdEncoding.EncodeToString(audio),
		Len:     len(audio),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("speech request failed: %w", err)
	}

	if code := gjson.GetBytes(body, "err_no").Int(); code != 0 {
		return "", fmt.Errorf("speech recognition error %d: %s", code, gjson.GetBytes(body, "err_msg").String())
	}

	var parts []string
	gjson.GetBytes(body, "result").ForEach(func(_, v gjson.Result) bool {
		parts = append(parts, v.String())
		return true
	})
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", domain.ErrTranscriptUnavailable
	}
	return text, nil
}

func (c *BaiduSpeechClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt.Add(-tokenRefreshMargin)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.config.APIKey)
	form.Set("client_secret", c.config.SecretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", fmt.Errorf("token request rejected: %s", gjson.GetBytes(body, "error_description").String())
	}

	lifetime := defaultTokenLifetime
	if secs := gjson.GetBytes(body, "expires_in").Int(); secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}
	c.token = token
	c.expiresAt = c.now().Add(lifetime)

	c.logger.Debug("Refreshed speech access token", zap.Time("expires_at", c.expiresAt))
	return token, nil
}

func (c *BaiduSpeechClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, tail(string(body)))
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not JSON")
	}
	return body, nil
}
