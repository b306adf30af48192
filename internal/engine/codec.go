package engine

import (
	"fmt"

	"github.com/buger/jsonparser"
	jsoniter "github.com/json-iterator/go"

	"github.com/seenimoa/stocknews/pkg/utils"
)

// wireJSON leaves '<', '>' and '&' unescaped so URLs go out verbatim.
var wireJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            false,
	ValidateJsonRawMessage: true,
}.Froze()

// ── Requests ──

type newsBatch struct {
	Items           []NewsItem `json:"items"`
	RequestAnalysis bool       `json:"request_analysis"`
}

type analysisRequest struct {
	Tickers  []string `json:"tickers"`
	Language string   `json:"language"`
}

// EncodeNewsBatch renders {"items":[...],"request_analysis":bool}.
// Optional item fields are omitted when empty, never sent as null.
func EncodeNewsBatch(items []NewsItem, requestAnalysis bool) ([]byte, error) {
	if items == nil {
		items = []NewsItem{}
	}
	data, err := wireJSON.Marshal(newsBatch{Items: items, RequestAnalysis: requestAnalysis})
	if err != nil {
		return nil, fmt.Errorf("encode news batch: %w", err)
	}
	return data, nil
}

// EncodeAnalysisRequest renders {"tickers":[...],"language":"..."}.
func EncodeAnalysisRequest(tickers []string, language string) ([]byte, error) {
	if tickers == nil {
		tickers = []string{}
	}
	data, err := wireJSON.Marshal(analysisRequest{Tickers: tickers, Language: language})
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}
	return data, nil
}

// ── Responses ──

// DecodeStringField returns the top-level string value stored under key.
// The boolean is false when the key is absent, holds a non-string value,
// or the body is malformed, so an empty string that was actually sent is
// distinguishable from a missing one.
func DecodeStringField(body []byte, key string) (string, bool) {
	s, err := jsonparser.GetString(body, key)
	if err != nil {
		return "", false
	}
	return s, true
}

// DecodeStringArrayField returns the string elements of the top-level
// array stored under key, in order. Non-string elements are skipped.
// The boolean is false when the key is absent, is not an array, or the
// array is malformed.
func DecodeStringArrayField(body []byte, key string) ([]string, bool) {
	value, typ, _, err := jsonparser.Get(body, key)
	if err != nil || typ != jsonparser.Array {
		return nil, false
	}

	out := []string{}
	var elemErr error
	_, err = jsonparser.ArrayEach(value, func(elem []byte, dt jsonparser.ValueType, _ int, err error) {
		if elemErr != nil {
			return
		}
		if err != nil {
			elemErr = err
			return
		}
		if dt != jsonparser.String {
			return
		}
		s, err := jsonparser.ParseString(elem)
		if err != nil {
			elemErr = err
			return
		}
		out = append(out, s)
	})
	if err != nil || elemErr != nil {
		return nil, false
	}
	return out, true
}

// DecodeAnalysis decodes an analysis response body.
//
// A decoded body is always reported as succeeded; expected keys that were
// absent are listed in Missing instead of failing the result.
func DecodeAnalysis(body []byte) AnalysisResult {
	res := AnalysisResult{Succeeded: true}

	fields := []struct {
		key string
		dst *string
	}{
		{"essay", &res.Essay},
		{"summary", &res.Summary},
		{"sentiment", &res.Sentiment},
	}
	for _, f := range fields {
		v, ok := DecodeStringField(body, f.key)
		if !ok {
			res.Missing = append(res.Missing, f.key)
			continue
		}
		*f.dst = v
	}

	if findings, ok := DecodeStringArrayField(body, "key_findings"); ok {
		res.KeyFindings = findings
	} else {
		res.KeyFindings = []string{}
		res.Missing = append(res.Missing, "key_findings")
	}

	if ts, ok := DecodeStringField(body, "generated_at"); ok {
		if t, err := utils.ParseTimestamp(ts); err == nil {
			res.GeneratedAt = t
		}
	}
	res.Metadata = decodeMetadata(body)

	return res
}

func decodeMetadata(body []byte) *AnalysisMetadata {
	raw, typ, _, err := jsonparser.Get(body, "metadata")
	if err != nil || typ != jsonparser.Object {
		return nil
	}
	md := &AnalysisMetadata{}
	md.Provider, _ = jsonparser.GetString(raw, "provider")
	md.Model, _ = jsonparser.GetString(raw, "model")
	md.DurationSeconds, _ = jsonparser.GetFloat(raw, "duration_seconds")
	if n, err := jsonparser.GetInt(raw, "retries"); err == nil {
		md.Retries = int(n)
	}
	return md
}

// decodeAlive reports whether the top-level "alive" key is boolean true.
func decodeAlive(body []byte) bool {
	alive, err := jsonparser.GetBoolean(body, "alive")
	return err == nil && alive
}
