// Package storage persists uploaded course documents and project files.
package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Store saves a file and returns the URL it can be fetched from.
type Store interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

const cloudinaryAPI = "https://api.cloudinary.com"

// Cloudinary uploads files through the Cloudinary REST API with signed requests.
type Cloudinary struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	baseURL   string
	http      *resty.Client
	now       func() time.Time
}

// NewCloudinary creates a Cloudinary store.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	return &Cloudinary{
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		folder:    folder,
		baseURL:   cloudinaryAPI,
		http:      resty.New().SetTimeout(30 * time.Second),
		now:       time.Now,
	}
}

type uploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
}

// Save uploads data with resource_type auto so documents and archives are accepted.
func (c *Cloudinary) Save(ctx context.Context, filename string, data []byte) (string, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if c.folder != "" {
		params["folder"] = c.folder
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.apiKey

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(params).
		SetFileReader("file", filepath.Base(filename), bytes.NewReader(data)).
		Post(fmt.Sprintf("%s/v1_1/%s/auto/upload", c.baseURL, c.cloudName))
	if err != nil {
		return "", errors.Wrap(err, "cloudinary upload")
	}
	if resp.IsError() {
		return "", errors.Errorf("cloudinary upload failed (%d): %s", resp.StatusCode(), resp.String())
	}
	var result uploadResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", errors.Wrap(err, "decode cloudinary response")
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	return result.URL, nil
}

// sign computes the request signature: sorted key=value pairs joined by &,
// followed by the API secret, SHA-1 hex encoded.
func (c *Cloudinary) sign(params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return fmt.Sprintf("%x", sum)
}

// PublicPath is the URL prefix Disk files are served under.
const PublicPath = "/uploads"

// Disk writes files under a local directory served at PublicPath.
type Disk struct {
	dir     string
	baseURL string
}

// NewDisk creates the directory if needed. baseURL is prefixed to returned
// URLs and may be empty for host-relative links.
func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &Disk{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir is the directory files are written to.
func (d *Disk) Dir() string { return d.dir }

// Save stores data under a fresh name keeping the original extension.
func (d *Disk) Save(_ context.Context, filename string, data []byte) (string, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if err := os.WriteFile(filepath.Join(d.dir, name), data, 0o644); err != nil {
		return "", errors.Wrap(err, "write upload")
	}
	return d.baseURL + PublicPath + "/" + name, nil
}
