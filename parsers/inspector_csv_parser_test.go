package parsers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestParseInspectorCSV(t *testing.T) {
	in := "\xEF\xBB\xBFNom,Email,Téléphone,Fonction,Actif\n" +
		"Jean Dupont,JEAN@kes.fr,0102030405,Inspecteur,oui\n" +
		",ghost@kes.fr,,,\n" +
		"Marie Curie,marie@kes.fr,,Responsable,non\n"

	got, err := ParseInspectorCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Jean Dupont", got[0].Name)
	assert.Equal(t, "jean@kes.fr", got[0].Email)
	assert.Equal(t, "0102030405", got[0].Phone)
	assert.Equal(t, "Inspecteur", got[0].JobTitle)
	assert.True(t, got[0].Active)

	assert.Equal(t, "Marie Curie", got[1].Name)
	assert.False(t, got[1].Active)
}

func TestParseInspectorCSV_Windows1252Semicolon(t *testing.T) {
	utf8Text := "Nom;Fonction\nRené Lefèvre;Électricien\n"
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(utf8Text))
	require.NoError(t, err)

	got, err := ParseInspectorCSV(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "René Lefèvre", got[0].Name)
	assert.Equal(t, "Électricien", got[0].JobTitle)
	assert.True(t, got[0].Active)
}

func TestParseInspectorCSV_Errors(t *testing.T) {
	_, err := ParseInspectorCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseInspectorCSV(strings.NewReader("Email,Phone\na@b.c,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}
