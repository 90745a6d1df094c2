package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { referenceValidate = false })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReferenceCommand(t *testing.T) {
	out, err := runRoot(t, "reference", "RE-2024-0042", "")
	require.NoError(t, err)

	assert.Contains(t, out, "RE-2024-0042\t000000000000000000202400426\t00 00000 00000 00000 02024 00426\n")
	assert.Contains(t, out, "\t000000000000000000000000000\t")
}

func TestReferenceCommand_Validate(t *testing.T) {
	out, err := runRoot(t, "reference", "--validate", "21 00000 00003 13947 14300 09017")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	out, err = runRoot(t, "reference", "--validate", "210000000003139471430009018", "210000000003139471430009017")
	assert.EqualError(t, err, "1 of 2 references invalid")
	assert.Contains(t, out, "INVALID")
}
