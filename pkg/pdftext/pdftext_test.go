package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	pages := []string{
		"  Composição do Documento de Arrecadação  \n\n0220 IRPJ SIMPLES NACIONAL 10,00\n",
		"Totais 10,00\n   \n",
	}

	lines := SplitLines(pages)

	assert.Equal(t, []string{
		"Composição do Documento de Arrecadação",
		"0220 IRPJ SIMPLES NACIONAL 10,00",
		"Totais 10,00",
	}, lines)
}

func TestSplitLines_Empty(t *testing.T) {
	assert.Empty(t, SplitLines(nil))
	assert.Empty(t, SplitLines([]string{"", "   \n  \n"}))
}
