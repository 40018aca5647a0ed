// Package pinning uploads files to the Pinata IPFS pinning service.
package pinning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"carelink/backend/internal/apperr"

	"github.com/go-resty/resty/v2"
)

const pinFilePath = "/pinning/pinFileToIPFS"

// Pin is a file pinned to IPFS.
type Pin struct {
	Hash string `json:"ipfsHash"`
	URL  string `json:"ipfsUrl"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Client talks to the Pinata REST API.
type Client struct {
	http    *resty.Client
	gateway string
}

func NewClient(apiURL, apiKey, secretKey, gatewayURL string) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetHeader("pinata_api_key", apiKey).
		SetHeader("pinata_secret_api_key", secretKey).
		SetTimeout(2 * time.Minute)

	return &Client{
		http:    http,
		gateway: strings.TrimRight(gatewayURL, "/") + "/",
	}
}

// PinFile uploads the file at path under the display name name and returns
// its gateway URL.
func (c *Client) PinFile(ctx context.Context, path, name string) (*Pin, error) {
	meta, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	var out pinResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFile("file", path).
		SetFormData(map[string]string{"pinataMetadata": string(meta)}).
		SetResult(&out).
		Post(pinFilePath)
	if err != nil {
		return nil, apperr.Upstream("Failed to upload file to IPFS", err)
	}
	if resp.IsError() {
		return nil, apperr.Upstream("Failed to upload file to IPFS",
			fmt.Errorf("pinata returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())))
	}
	if out.IpfsHash == "" {
		return nil, apperr.Upstream("Failed to upload file to IPFS", fmt.Errorf("pinata response has no IpfsHash"))
	}

	return &Pin{Hash: out.IpfsHash, URL: c.gateway + out.IpfsHash}, nil
}
