package script

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"pizzacall/internal/domain"
)

//go:embed messages.yaml
var defaultMessages []byte

// Script holds every sentence the service speaks or feeds to the dialogue
// engine. Placeholders: {{pizzeria}} and, in directives, {{greeting}}.
type Script struct {
	Language       string    `yaml:"language"`
	SayVoice       string    `yaml:"say_voice"`
	PizzeriaLabel  string    `yaml:"pizzeria_label"`
	Kickoff        string    `yaml:"kickoff"`
	Greeting       string    `yaml:"greeting"`
	Directives     []string  `yaml:"directives"`
	MenuHeader     string    `yaml:"menu_header"`
	Apologies      Apologies `yaml:"apologies"`
	OrderConfirmed string    `yaml:"order_confirmed"`
	OrderRejected  string    `yaml:"order_rejected"`
	Farewell       string    `yaml:"farewell"`
	TimeLimit      string    `yaml:"time_limit"`
}

type Apologies struct {
	Unavailable   string `yaml:"unavailable"`
	EngineFailure string `yaml:"engine_failure"`
	OrderFailure  string `yaml:"order_failure"`
}

// Default returns the embedded French script.
func Default() *Script {
	s, err := Parse(defaultMessages)
	if err != nil {
		panic(fmt.Sprintf("embedded script is invalid: %v", err))
	}
	return s
}

// Load parses the script at path, or returns the embedded one when path is
// empty.
func Load(path string) (*Script, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) validate() error {
	required := map[string]string{
		"language":                 s.Language,
		"kickoff":                  s.Kickoff,
		"greeting":                 s.Greeting,
		"apologies.unavailable":    s.Apologies.Unavailable,
		"apologies.engine_failure": s.Apologies.EngineFailure,
		"apologies.order_failure":  s.Apologies.OrderFailure,
		"order_confirmed":          s.OrderConfirmed,
		"farewell":                 s.Farewell,
		"time_limit":               s.TimeLimit,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("script: %s is required", key)
		}
	}
	if len(s.Directives) == 0 {
		return fmt.Errorf("script: directives are required")
	}
	return nil
}

// GreetingFor fills in the pizzeria name.
func (s *Script) GreetingFor(pizzeria string) string {
	return s.fill(s.Greeting, pizzeria)
}

// SystemPrompt renders the directives followed by the catalog lines. The
// prompt is built once per call.
func (s *Script) SystemPrompt(pizzeria string, catalog domain.CatalogSnapshot) string {
	greeting := s.GreetingFor(pizzeria)

	var b strings.Builder
	for _, directive := range s.Directives {
		b.WriteString(strings.ReplaceAll(s.fill(directive, pizzeria), "{{greeting}}", greeting))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if s.MenuHeader != "" {
		b.WriteString(s.MenuHeader)
		b.WriteString("\n")
	}
	b.WriteString(catalog.Render())
	return b.String()
}

func (s *Script) fill(text, pizzeria string) string {
	if pizzeria == "" {
		pizzeria = s.PizzeriaLabel
	}
	return strings.ReplaceAll(text, "{{pizzeria}}", pizzeria)
}
