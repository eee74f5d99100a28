package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenDocs(t *testing.T) {
	b := bytes.NewBuffer(nil)
	require.NoError(t, genDocs(rootCmd, b))

	docs := b.String()
	for _, name := range []string{"sophon run", "sophon check", "sophon state show", "sophon state enqueue", "sophon deliver-test"} {
		assert.Contains(t, docs, "## "+name)
	}
	assert.Contains(t, docs, "--only-once")
	assert.NotContains(t, docs, "SEE ALSO")
}
