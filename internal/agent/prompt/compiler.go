// Package prompt renders a content sequence into the model request.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tyler-sommer/stick"

	"github.com/feichai0017/testcase-generator/internal/agent/llm"
	"github.com/feichai0017/testcase-generator/internal/models"
)

const (
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 3000
)

const systemPrompt = `You are a QA test case generation assistant. I will provide you with the content of a Software Requirements Specification (SRS) document, which may include plain text as well as detected text and components from product design images or screenshots. Your task is to analyze the content in sequence and generate a comprehensive list of QA test cases.`

const formatContract = `Generate test cases without including column headers. I only need the test cases in the following format for Excel. Each test case should include the following fields in a detailed manner:

- Test Case ID: A unique identifier (e.g.- TC01, TC02)
- Test Case Description: A detailed description explaining what the test case is validating.
- Preconditions: Specify all preconditions necessary before running the test (e.g., user must be logged in, task must exist, etc.).
- Test Steps: Provide all the necessary steps to execute the test case with serial numbers. Each step should be clear and detailed.
- Expected Result: A clear description of the expected system behavior or UI changes after the test steps are executed.
- Status: Set to 'Not yet executed'.
- Comments: Leave this field empty.

Generate the test cases as a list, where each test case is on a new line and follows the format: Test Case ID| Test Case Description| Preconditions| Test Steps| Expected Result| Status| Comments. Ensure there are no additional bullet points or formatting.`

const userTemplate = `{{ contract }}

Here is the content:
{{ content }}`

var unitTemplates = map[models.ContentKind]string{
	models.KindText:       "{{ payload }}\n\n",
	models.KindImageText:  "Image Text: {{ payload }}\n\n",
	models.KindComponents: "UI Components:\n{{ payload }}\n\n",
}

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

type Option func(*Options)

func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

// Compiler is stateless apart from its options; the same sequence always
// compiles to the same request.
type Compiler struct {
	env  *stick.Env
	opts Options
}

func NewCompiler(opts ...Option) *Compiler {
	o := Options{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	return &Compiler{env: stick.New(nil), opts: o}
}

// RenderContent concatenates every unit in sequence order using its kind's
// format. Nothing is deduplicated or dropped.
func (c *Compiler) RenderContent(seq models.ContentSequence) (string, error) {
	var out strings.Builder
	for i, unit := range seq {
		tpl, ok := unitTemplates[unit.Kind]
		if !ok {
			return "", fmt.Errorf("unit %d: unknown content kind %s", i, unit.Kind)
		}
		if err := c.env.Execute(tpl, &out, map[string]stick.Value{"payload": unit.Payload}); err != nil {
			return "", fmt.Errorf("unit %d: render: %w", i, err)
		}
	}
	return out.String(), nil
}

// Compile builds the two-message request: the fixed assistant role, then the
// output format contract followed by the rendered content.
func (c *Compiler) Compile(seq models.ContentSequence) (llm.ChatRequest, error) {
	content, err := c.RenderContent(seq)
	if err != nil {
		return llm.ChatRequest{}, err
	}

	var user strings.Builder
	err = c.env.Execute(userTemplate, &user, map[string]stick.Value{
		"contract": formatContract,
		"content":  content,
	})
	if err != nil {
		return llm.ChatRequest{}, fmt.Errorf("render user message: %w", err)
	}

	return llm.ChatRequest{
		Model: c.opts.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: user.String()},
		},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}, nil
}
