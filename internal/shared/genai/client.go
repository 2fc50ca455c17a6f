package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// 生成式AI服务默认地址与模型
const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// DetectedTotalMarker 报告文本中的总额标记前缀
const DetectedTotalMarker = "[DETECTED_TOTAL:"

// Client 生成式AI客户端，封装内容生成与文档规则提取
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client

	// BaseURL 可在测试中指向本地服务
	BaseURL string
}

// NewClient 创建生成式AI客户端
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		BaseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Blob 内联二进制数据（base64编码）
type Blob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Part 请求内容片段，文本与内联数据二选一
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inline_data,omitempty"`
}

// TextPart 构造纯文本片段
func TextPart(text string) Part {
	return Part{Text: text}
}

// Citation 报告引用来源
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Result 一次内容生成的结果
type Result struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					Title string `json:"title"`
					URI   string `json:"uri"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateContent 调用模型生成内容。system 为系统指令，
// parts 为用户侧内容片段（文本+内联附件）。
func (c *Client) GenerateContent(ctx context.Context, system string, parts []Part) (*Result, error) {
	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	}
	if system != "" {
		reqBody.SystemInstruction = &content{Parts: []Part{{Text: system}}}
	}

	var resp generateResponse
	if err := c.doRequest(ctx, &reqBody, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("genai error[%d]: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("genai returned no candidates")
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		sb.WriteString(p.Text)
	}

	result := &Result{Text: sb.String()}
	for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
		if chunk.Web.URI != "" {
			result.Citations = append(result.Citations, Citation{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
	}
	return result, nil
}

// DigestDocument 提取标准文档中的检测相关规则文本。
// 提取结果不足10个字符视为失败。
func (c *Client) DigestDocument(ctx context.Context, data []byte, mimeType, docType string) (string, error) {
	prompt := fmt.Sprintf(
		"Extract every inspection-relevant rule, threshold and requirement from this %s document. "+
			"Return plain text rules only, one per line, no commentary.", docType)
	parts := []Part{
		TextPart(prompt),
		{InlineData: &Blob{MimeType: mimeType, Data: encodeBase64(data)}},
	}

	result, err := c.GenerateContent(ctx, "", parts)
	if err != nil {
		return "", err
	}
	rules := strings.TrimSpace(result.Text)
	if len(rules) < 10 {
		return "", fmt.Errorf("document digestion returned no usable content")
	}
	return rules, nil
}

// doRequest 执行生成请求并解析响应
func (c *Client) doRequest(ctx context.Context, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal genai request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create genai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read genai response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("genai HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decode genai response: %w", err)
	}
	return nil
}

// ExtractDetectedTotal 从报告文本中提取 [DETECTED_TOTAL: <number>] 标记，
// 去掉千分位分隔符与货币符号。标记缺失或无法解析时返回 nil。
func ExtractDetectedTotal(text string) *float64 {
	start := strings.Index(text, DetectedTotalMarker)
	if start < 0 {
		return nil
	}
	rest := text[start+len(DetectedTotalMarker):]
	end := strings.Index(rest, "]")
	if end < 0 {
		return nil
	}
	raw := rest[:end]
	raw = strings.NewReplacer(",", "", "$", "", " ", "").Replace(raw)
	if raw == "" {
		return nil
	}
	total, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &total
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
