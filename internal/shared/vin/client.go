package vin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// NHTSA vPIC 公开解码接口
const defaultBaseURL = "https://vpic.nhtsa.dot.gov/api"

// DecodedVehicle VIN 解码结果
type DecodedVehicle struct {
	Year  int    `json:"year"`
	Make  string `json:"make"`
	Model string `json:"model"`
}

// Client VIN 解码客户端。解码失败一律静默返回 nil，
// 不向调用方传播错误，调用方保持原有车辆字段不变。
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger

	// BaseURL 可在测试中指向本地服务
	BaseURL string
}

// NewClient 创建 VIN 解码客户端
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		BaseURL:    defaultBaseURL,
	}
}

type decodeResponse struct {
	Results []struct {
		ModelYear string `json:"ModelYear"`
		Make      string `json:"Make"`
		Model     string `json:"Model"`
	} `json:"Results"`
}

// Decode 解码 17 位 VIN。任何失败（网络、格式、未命中）都返回 nil。
func (c *Client) Decode(ctx context.Context, vin string) *DecodedVehicle {
	if len(vin) != 17 {
		c.logger.Debug("vin decode skipped, not 17 chars", zap.String("vin", vin))
		return nil
	}

	url := fmt.Sprintf("%s/vehicles/DecodeVinValues/%s?format=json", c.BaseURL, vin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Debug("vin decode request build failed", zap.Error(err))
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("vin decode request failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("vin decode non-200", zap.Int("status", resp.StatusCode))
		return nil
	}

	var result decodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Debug("vin decode parse failed", zap.Error(err))
		return nil
	}
	if len(result.Results) == 0 {
		return nil
	}

	r := result.Results[0]
	year, err := strconv.Atoi(r.ModelYear)
	if err != nil || r.Make == "" {
		return nil
	}
	return &DecodedVehicle{Year: year, Make: r.Make, Model: r.Model}
}
