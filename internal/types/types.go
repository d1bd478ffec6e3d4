package types

import "github.com/toricodesthings/doc-conversion-service/internal/quality"

// ErrorResponse is the JSON body of every failed request made with
// "Accept: application/json".
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Active int64  `json:"active"`
}

// OCRResult is returned by /image-to-text in JSON mode.
type OCRResult struct {
	Success     bool           `json:"success"`
	Text        string         `json:"text"`
	Language    string         `json:"language"`
	Filename    string         `json:"filename"`
	DownloadURL string         `json:"downloadUrl"`
	Quality     quality.Report `json:"quality"`
}

type MetricsResponse struct {
	ActiveRequests int64  `json:"activeRequests"`
	TotalRequests  int64  `json:"totalRequests"`
	Conversions    int64  `json:"conversions"`
	OCRRuns        int64  `json:"ocrRuns"`
	Failures       int64  `json:"failures"`
	Goroutines     int    `json:"goroutines"`
	MemAllocMB     uint64 `json:"memAllocMB"`
	MemSysMB       uint64 `json:"memSysMB"`
}

// PageInfo describes one page of a PDF, as reported by the CLI.
type PageInfo struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
