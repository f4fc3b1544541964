package generator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	OllamaUnreachable = "[Ollama not running or unreachable]"
	OllamaNoResponse  = "[Ollama: No response. Is the model running?]"

	maxOllamaLine = 1 << 20
)

// OllamaStatusReply is the reply used when the endpoint answers with a non-success status.
func OllamaStatusReply(status int) string {
	return fmt.Sprintf("[Ollama error: %d %s]", status, http.StatusText(status))
}

// Ollama is the secondary backend, a local generate endpoint streaming newline-delimited JSON.
// It never returns an error: failures become diagnostic replies.
type Ollama struct {
	endpoint     string
	model        string
	systemPrompt string
	promptFormat string
	client       *http.Client
}

// NewOllama builds the backend. promptFormat receives the system prompt and the user text, in that order.
func NewOllama(endpoint, model, systemPrompt, promptFormat string) *Ollama {
	return &Ollama{
		endpoint:     endpoint,
		model:        model,
		systemPrompt: systemPrompt,
		promptFormat: promptFormat,
		client:       &http.Client{},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateFragment struct {
	Response string `json:"response"`
}

func (o *Ollama) GenerateReply(ctx context.Context, text string) (string, error) {
	payloadBuf := new(bytes.Buffer)
	err := json.NewEncoder(payloadBuf).Encode(generateRequest{
		Model:  o.model,
		Prompt: fmt.Sprintf(o.promptFormat, o.systemPrompt, text),
	})
	if err != nil {
		log.Error().Err(err).Msg("error encoding ollama request")
		return OllamaUnreachable, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, payloadBuf)
	if err != nil {
		log.Error().Err(err).Msg("error creating POST request for ollama")
		return OllamaUnreachable, nil
	}

	req.Header.Add("Content-Type", "application/json")

	res, err := o.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", o.endpoint).Msg("ollama unreachable")
		return OllamaUnreachable, nil
	}

	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Warn().Int("status", res.StatusCode).Msg("ollama returned an error status")
		return OllamaStatusReply(res.StatusCode), nil
	}

	reply, err := accumulateFragments(res.Body)
	if err != nil {
		log.Warn().Err(err).Msg("error reading ollama stream")
		return OllamaUnreachable, nil
	}

	if strings.TrimSpace(reply) == "" {
		return OllamaNoResponse, nil
	}

	return reply, nil
}

// accumulateFragments concatenates the response field of every well-formed line, skipping the rest.
func accumulateFragments(body io.Reader) (string, error) {
	var reply strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOllamaLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var fragment generateFragment
		if err := json.Unmarshal([]byte(line), &fragment); err != nil {
			log.Debug().Str("line", line).Msg("skipping malformed ollama fragment")
			continue
		}

		reply.WriteString(fragment.Response)
	}

	if err := scanner.Err(); err != nil {
		return "", err
	}

	return reply.String(), nil
}
