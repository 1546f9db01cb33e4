package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzacall/internal/domain"
)

func TestDefault_IsComplete(t *testing.T) {
	s := Default()

	assert.Equal(t, "fr-FR", s.Language)
	assert.Equal(t, "alice", s.SayVoice)
	assert.Equal(t, "start", s.Kickoff)
	assert.NotEmpty(t, s.Directives)
	assert.Contains(t, s.Apologies.Unavailable, "pas disponible")
}

func TestGreetingFor(t *testing.T) {
	s := Default()

	assert.Equal(t, "Bonjour et bienvenue chez Pizza Roma, que puis-je pour vous ?", s.GreetingFor("Pizza Roma"))
	assert.Equal(t, "Bonjour et bienvenue chez Pizza AI, que puis-je pour vous ?", s.GreetingFor(""))
}

func TestSystemPrompt_ContainsDirectivesAndCatalog(t *testing.T) {
	s := Default()
	catalog := domain.NewCatalogSnapshot("p-1", []domain.MenuLine{
		{Name: "Margherita", Price: 9.5},
		{Name: "Regina", Price: 11},
	})

	prompt := s.SystemPrompt("Pizza Roma", catalog)

	assert.Contains(t, prompt, "save_order")
	assert.Contains(t, prompt, "Bonjour et bienvenue chez Pizza Roma")
	assert.NotContains(t, prompt, "{{")
	assert.True(t, strings.HasSuffix(prompt, "- Margherita: 9.5€\n- Regina: 11€"))
}

func TestSystemPrompt_DoesNotLeakOtherCatalogs(t *testing.T) {
	s := Default()
	a := s.SystemPrompt("A", domain.NewCatalogSnapshot("a", []domain.MenuLine{{Name: "Pizza A", Price: 1}}))
	b := s.SystemPrompt("B", domain.NewCatalogSnapshot("b", []domain.MenuLine{{Name: "Pizza B", Price: 2}}))

	assert.NotContains(t, a, "Pizza B")
	assert.NotContains(t, b, "Pizza A")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	content := strings.Replace(string(defaultMessages), "language: fr-FR", "language: it-IT", 1)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "it-IT", s.Language)
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Greeting, s.Greeting)
}

func TestParse_MissingFieldsRejected(t *testing.T) {
	_, err := Parse([]byte("language: fr-FR\n"))
	assert.Error(t, err)
}
