package langadapter

import (
	"testing"

	"github.com/abadojack/whatlanggo"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	a := NewLangAdapterWithWhitelist(whatlanggo.Eng, whatlanggo.Deu)

	ranked, err := a.Detect("Sehr geehrte Damen und Herren, anbei erhalten Sie die angeforderten Unterlagen für das kommende Projekt.")
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	require.Equal(t, "de", ranked[0].Language)
	require.InDelta(t, 0.5, ranked[0].Probability, 0.5)

	ranked, err = a.Detect("Dear Sir or Madam, please find attached the requested documents for the upcoming project.")
	require.NoError(t, err)
	require.Equal(t, "en", ranked[0].Language)
}
