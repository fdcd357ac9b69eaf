package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unplacedTaskConfig = `
src_vocab: vocabs/test.vocab
tgt_vocab: vocabs/test.vocab
tasks:
  train_sl-de:
    src_tgt: sl-de
    path_src: data/train.sign
    path_tgt: data/train.de
`

func TestValidateCommand_AllowsUnplacedTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(unplacedTaskConfig), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"validate", path})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "1 tasks, ok")
}

func TestValidateCommand_RejectsBadPlacement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfgYAML := unplacedTaskConfig + "    node_gpu: \"zero\"\n"
	require.NoError(t, os.WriteFile(path, []byte(cfgYAML), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"validate", path})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Error(t, rootCmd.ExecuteContext(context.Background()))
}
