// Package images uploads entity images to the external hosting service.
// The host is a collaborator only: payload plus logical identifier in,
// durable URL plus opaque identifier out.
package images

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	profileFolder = "smart_city_profiles"
	stationFolder = "smart_city_stations"
)

// Upload is the stored outcome of a successful upload.
type Upload struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// Config holds the Cloudinary account settings.
type Config struct {
	CloudName string `json:"cloud_name" yaml:"cloud_name"`
	APIKey    string `json:"api_key" yaml:"api_key"`
	APISecret string `json:"api_secret" yaml:"api_secret"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url"`
	Timeout   int    `json:"timeout,omitempty" yaml:"timeout"` // seconds
}

// Client uploads images through the Cloudinary REST API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates an upload client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.CloudName == "" || config.APIKey == "" || config.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials are required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.cloudinary.com/v1_1"
	}
	if config.Timeout == 0 {
		config.Timeout = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: time.Duration(config.Timeout) * time.Second},
		logger:     logger,
		now:        time.Now,
	}, nil
}

// UploadProfileImage stores a user's profile image under a stable public
// identifier so re-uploads overwrite the previous one.
func (c *Client) UploadProfileImage(ctx context.Context, userID string, image io.Reader) (*Upload, error) {
	return c.upload(ctx, image, profileFolder, "user_"+userID)
}

// UploadStationImage stores a station image.
func (c *Client) UploadStationImage(ctx context.Context, stationID string, image io.Reader) (*Upload, error) {
	return c.upload(ctx, image, stationFolder, "station_"+stationID)
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) upload(ctx context.Context, image io.Reader, folder, publicID string) (*Upload, error) {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	params := map[string]string{
		"folder":    folder,
		"overwrite": "true",
		"public_id": publicID,
		"timestamp": timestamp,
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", publicID)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to read image payload: %w", err)
	}
	for k, v := range params {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if err := writer.WriteField("api_key", c.config.APIKey); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.WriteField("signature", signParams(params, c.config.APISecret)); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/image/upload", c.config.BaseURL, c.config.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image upload failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("image host error: %s", parsed.Error.Message)
		}
		return nil, fmt.Errorf("image host returned status %d", resp.StatusCode)
	}

	c.logger.Info("image uploaded", zap.String("publicId", parsed.PublicID))
	return &Upload{URL: parsed.SecureURL, PublicID: parsed.PublicID}, nil
}

// signParams produces the Cloudinary request signature: the SHA-1 of the
// sorted key=value parameter string concatenated with the API secret.
func signParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
