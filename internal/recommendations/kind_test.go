package recommendations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	kind, err := ParseKind(" Analytics ")
	require.NoError(t, err)
	require.Equal(t, KindAnalytics, kind)

	for _, k := range Kinds() {
		parsed, err := ParseKind(string(k))
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}

	_, err = ParseKind("chat")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestKeyValidate(t *testing.T) {
	require.NoError(t, Key{UserID: "u1", Kind: KindGoals}.Validate())
	require.Error(t, Key{Kind: KindGoals}.Validate())
	require.ErrorIs(t, Key{UserID: "u1", Kind: "other"}.Validate(), ErrUnknownKind)
	require.Equal(t, "goals:u1", Key{UserID: "u1", Kind: KindGoals}.String())
}
