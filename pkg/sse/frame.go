package sse

import (
	"encoding/json"
	"strings"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// lineKind classifies a single stream line.
type lineKind int

const (
	// lineSkip is a blank, comment or non-data line.
	lineSkip lineKind = iota

	// lineDelta is a data line holding valid JSON. content may be empty.
	lineDelta

	// lineDone is the end of stream sentinel.
	lineDone

	// lineInvalid is a data line whose payload is not valid JSON yet.
	lineInvalid
)

// frame is the subset of an OpenAI style chat completion chunk the decoder
// reads. Content stays raw so a non-string value does not fail the frame.
type frame struct {
	Choices []struct {
		Delta struct {
			Content json.RawMessage `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// classify parses one raw line (without its newline) and returns its kind and,
// for delta lines, the text content of choices[0].delta.content.
func classify(raw string) (lineKind, string) {
	line := strings.TrimSuffix(raw, "\r")
	if strings.HasPrefix(line, ":") || strings.TrimSpace(line) == "" {
		return lineSkip, ""
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return lineSkip, ""
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == doneMarker {
		return lineDone, ""
	}
	if !json.Valid([]byte(payload)) {
		return lineInvalid, ""
	}

	return lineDelta, contentOf(payload)
}

// contentOf returns choices[0].delta.content when it is a string. Any other
// shape yields "".
func contentOf(payload string) string {
	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return ""
	}
	if len(f.Choices) == 0 || len(f.Choices[0].Delta.Content) == 0 {
		return ""
	}

	var content string
	if err := json.Unmarshal(f.Choices[0].Delta.Content, &content); err != nil {
		return ""
	}
	return content
}
