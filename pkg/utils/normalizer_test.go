package utils_test

import (
	"sync"
	"testing"

	"github.com/robalyx/chorus/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestTextNormalizer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		want     string
		contains string
		hasMatch bool
	}{
		{
			name:     "empty string",
			input:    "",
			want:     "",
			contains: "hola",
			hasMatch: false,
		},
		{
			name:     "spanish accents",
			input:    "¿Cómo puedo entrar?",
			want:     "¿como puedo entrar?",
			contains: "como puedo",
			hasMatch: true,
		},
		{
			name:     "accented needle",
			input:    "donde esta el enlace",
			want:     "donde esta el enlace",
			contains: "dónde está",
			hasMatch: true,
		},
		{
			name:     "eñe folds to n",
			input:    "Mañana",
			want:     "manana",
			contains: "manana",
			hasMatch: true,
		},
		{
			name:     "mixed case with spaces",
			input:    "NO   Me   DEJA",
			want:     "no me deja",
			contains: "no me deja",
			hasMatch: true,
		},
		{
			name:     "no match",
			input:    "buenos días",
			want:     "buenos dias",
			contains: "ayuda",
			hasMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			normalizer := utils.NewTextNormalizer()

			assert.Equal(t, tt.want, normalizer.Normalize(tt.input))
			assert.Equal(t, tt.hasMatch, normalizer.Contains(tt.input, tt.contains))
		})
	}
}

func TestTextNormalizer_NormalizeAll(t *testing.T) {
	t.Parallel()
	normalizer := utils.NewTextNormalizer()

	got := normalizer.NormalizeAll([]string{"cómo puedo", "como puedo", "", "Ayuda", "ayuda"})
	assert.Equal(t, []string{"como puedo", "ayuda"}, got)
}

func TestTextNormalizer_ContainsAny(t *testing.T) {
	t.Parallel()
	normalizer := utils.NewTextNormalizer()
	terms := normalizer.NormalizeAll([]string{"dónde está", "no funciona"})

	assert.True(t, normalizer.ContainsAny("Donde está la grabación", terms))
	assert.True(t, normalizer.ContainsAny("el login NO FUNCIONA", terms))
	assert.False(t, normalizer.ContainsAny("todo bien por aquí", terms))
	assert.False(t, normalizer.ContainsAny("", terms))
}

func TestTextNormalizer_Concurrent(t *testing.T) {
	t.Parallel()
	normalizer := utils.NewTextNormalizer()

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "cancion", normalizer.Normalize("Canción"))
		}()
	}
	wg.Wait()
}

func BenchmarkTextNormalizer(b *testing.B) {
	normalizer := utils.NewTextNormalizer()
	text := "¿Alguien sabe dónde están las grabaciones del directo?"
	terms := normalizer.NormalizeAll([]string{"alguien sabe", "dónde están"})

	b.Run("Normalize", func(b *testing.B) {
		for b.Loop() {
			normalizer.Normalize(text)
		}
	})

	b.Run("ContainsAny", func(b *testing.B) {
		for b.Loop() {
			normalizer.ContainsAny(text, terms)
		}
	})
}
