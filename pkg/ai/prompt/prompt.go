// Package prompt provides the assistant's system prompt.
package prompt

import (
	"os"
	"strings"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
)

// DefaultText is used when no prompt file is configured or it cannot be read.
const DefaultText = "You are a professional assistant who helps users answer their questions."

// Provider holds the loaded system prompt. It is read once at startup.
type Provider struct {
	text   string
	source string
}

// Load reads the prompt at path. An empty path, a read failure or an empty
// file falls back to DefaultText.
func Load(path string) *Provider {
	if path == "" {
		return &Provider{text: DefaultText, source: "default"}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logx.WithFields(logx.Fields{
			"path":  path,
			"error": err.Error(),
		}).Warn("failed to load prompt, using default")
		return &Provider{text: DefaultText, source: "default"}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		logx.WithField("path", path).Warn("prompt file is empty, using default")
		return &Provider{text: DefaultText, source: "default"}
	}

	logx.WithField("path", path).Info("loaded prompt")
	return &Provider{text: text, source: path}
}

// Static returns a provider for a fixed prompt.
func Static(text string) *Provider {
	return &Provider{text: text, source: "static"}
}

func (p *Provider) SystemMessage() llm.Message {
	return llm.NewSystemMessage(p.text)
}

func (p *Provider) Text() string   { return p.text }
func (p *Provider) Source() string { return p.source }
