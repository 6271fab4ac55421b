package object

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	t.Run("put then get round trips", func(t *testing.T) {
		err := store.Put(ctx, "tasks/t1/a1-notes.txt", strings.NewReader("hello"), "text/plain")
		require.NoError(t, err)

		data, err := store.Get(ctx, "tasks/t1/a1-notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("put refuses to overwrite", func(t *testing.T) {
		err := store.Put(ctx, "tasks/t1/a1-notes.txt", strings.NewReader("other"), "text/plain")
		assert.Equal(t, ErrObjectExists, errors.Cause(err))
	})

	t.Run("get missing object", func(t *testing.T) {
		_, err := store.Get(ctx, "tasks/t1/nope.txt")
		assert.Equal(t, ErrObjectNotFound, errors.Cause(err))
	})

	t.Run("rejects escaping paths", func(t *testing.T) {
		for _, path := range []string{"", "../etc/passwd", "/etc/passwd", "tasks/../../x"} {
			err := store.Put(ctx, path, strings.NewReader("x"), "text/plain")
			assert.Equal(t, ErrInvalidPath, errors.Cause(err), path)
		}
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "tasks/t2/a2-x.txt", strings.NewReader("x"), "text/plain"))
		require.NoError(t, store.Remove(ctx, "tasks/t2/a2-x.txt"))
		require.NoError(t, store.Remove(ctx, "tasks/t2/a2-x.txt"))

		_, err := store.Get(ctx, "tasks/t2/a2-x.txt")
		assert.Equal(t, ErrObjectNotFound, errors.Cause(err))
	})
}
