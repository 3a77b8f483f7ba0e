package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/stemsi/ept-backend/internal/model"
)

// ChunkSize is the maximum number of characters sent per extraction request.
const ChunkSize = 6000

// ErrExtractorDisabled is returned when no API key is configured.
var ErrExtractorDisabled = errors.New("ai extractor is not configured")

// Extractor turns free text into loosely typed questions.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]RawQuestion, error)
	Generate(ctx context.Context, p GenerateParams) ([]RawQuestion, error)
}

// GenerateParams describes a from-scratch generation request.
type GenerateParams struct {
	Level   model.ProficiencyLevel
	Section model.Section
	Topic   string
	Count   int
}

// GeminiExtractor calls the Gemini API.
type GeminiExtractor struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    zerolog.Logger
}

// NewGeminiExtractor creates a client for modelName. An empty apiKey yields
// ErrExtractorDisabled.
func NewGeminiExtractor(ctx context.Context, apiKey, modelName string, log zerolog.Logger) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, ErrExtractorDisabled
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	m := client.GenerativeModel(modelName)
	temp := float32(0.3)
	m.Temperature = &temp
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = questionListSchema()

	return &GeminiExtractor{
		client: client,
		model:  m,
		log:    log.With().Str("component", "gemini_extractor").Logger(),
	}, nil
}

// Close releases the underlying client.
func (g *GeminiExtractor) Close() error {
	return g.client.Close()
}

// Extract splits text into ChunkSize pieces and extracts questions from each.
func (g *GeminiExtractor) Extract(ctx context.Context, text string) ([]RawQuestion, error) {
	var out []RawQuestion
	for i, chunk := range Chunks(text, ChunkSize) {
		qs, err := g.ask(ctx, extractPrompt(chunk))
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i+1, err)
		}
		g.log.Debug().Int("chunk", i+1).Int("questions", len(qs)).Msg("Chunk extracted")
		out = append(out, qs...)
	}
	return out, nil
}

// Generate asks for Count new questions.
func (g *GeminiExtractor) Generate(ctx context.Context, p GenerateParams) ([]RawQuestion, error) {
	return g.ask(ctx, generatePrompt(p))
}

func (g *GeminiExtractor) ask(ctx context.Context, prompt string) ([]RawQuestion, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return ParseResponse(responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return sb.String()
}

// ParseResponse decodes model output, tolerating markdown code fences and a
// wrapping {"questions": [...]} object.
func ParseResponse(text string) ([]RawQuestion, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	qs, err := DecodeRaw([]byte(text), FormatJSON)
	if err != nil {
		var single RawQuestion
		if json.Unmarshal([]byte(text), &single) == nil && single.Text != "" {
			return []RawQuestion{single}, nil
		}
		return nil, err
	}
	return qs, nil
}

// Chunks splits s into pieces of at most size runes.
func Chunks(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

func extractPrompt(chunk string) string {
	return `Analyze the text and extract exam questions in JSON format.
IMPORTANT:
1. Classify each question into the appropriate CEFR level (A1-C2).
2. If you identify a MATCHING task, create A SINGLE question where:
   - 'text' is the main instruction.
   - 'options' are the target options.
   - 'subQuestions' is an array of items to be matched (each with 'text' and 'correctAnswerIndex' pointing to 'options').
3. For standard questions, 'subQuestions' should not exist.
4. Ensure all content is in ENGLISH.
Text: "` + chunk + `"`
}

func generatePrompt(p GenerateParams) string {
	topic := p.Topic
	var sb strings.Builder
	switch p.Section {
	case model.SectionReading:
		fmt.Fprintf(&sb, "Generate %d READING questions for CEFR level %s.\n", p.Count, p.Level)
		fmt.Fprintf(&sb, "Include an academic or professional base text suitable for level %s (150-250 words).\n", p.Level)
		sb.WriteString("The 'text' field must contain THE FULL TEXT followed by the QUESTION, separated by a blank line.\n")
	case model.SectionUseOfEnglish:
		if topic == "" {
			topic = "Business & Technology"
		}
		fmt.Fprintf(&sb, "Generate %d USE OF ENGLISH questions for CEFR level %s.\nTopic: %s.\n", p.Count, p.Level, topic)
		sb.WriteString("Focus on advanced grammar, collocations, phrasal verbs and sentence transformation.\n")
	case model.SectionListening:
		fmt.Fprintf(&sb, "Generate %d LISTENING questions for CEFR level %s.\n", p.Count, p.Level)
		sb.WriteString("Base each question on a short dialogue transcript placed at the beginning of the 'text' field.\n")
	default:
		if topic == "" {
			topic = "Varied"
		}
		fmt.Fprintf(&sb, "Generate %d %s questions for CEFR level %s.\nTopic: %s.\n", p.Count, p.Section, p.Level, topic)
	}
	fmt.Fprintf(&sb, "Return ONLY a JSON array of objects with level %q, section %q, text, options (4 strings) and correctAnswerIndex (0-3). Ensure content is in ENGLISH.", p.Level, p.Section)
	return sb.String()
}

func questionListSchema() *genai.Schema {
	levels := make([]string, len(model.AllLevels))
	for i, l := range model.AllLevels {
		levels[i] = string(l)
	}
	sections := make([]string, len(model.AllSections))
	for i, s := range model.AllSections {
		sections[i] = string(s)
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"level":              {Type: genai.TypeString, Format: "enum", Enum: levels},
				"section":            {Type: genai.TypeString, Format: "enum", Enum: sections},
				"text":               {Type: genai.TypeString},
				"options":            {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"correctAnswerIndex": {Type: genai.TypeInteger},
				"answerText":         {Type: genai.TypeString},
				"subQuestions": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"text":               {Type: genai.TypeString},
							"correctAnswerIndex": {Type: genai.TypeInteger},
						},
					},
				},
			},
			Required: []string{"level", "section", "text", "options"},
		},
	}
}
