package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntity(t *testing.T) {
	t.Run("yaml descriptor", func(t *testing.T) {
		data := []byte(`
apiVersion: backstage.io/v1alpha1
kind: Component
metadata:
  name: demo
  uid: uid-1
  annotations:
    catalog-deployer.io/target: default
    backstage.io/source-location: url:https://github.com/acme/demo
spec:
  type: service
`)
		entity, err := ParseEntity(data)
		require.NoError(t, err)
		assert.Equal(t, "component:default/demo", entity.Ref().String())
		assert.Equal(t, "uid-1", entity.Metadata.UID)

		target, ok := entity.Annotation(AnnotationTarget)
		assert.True(t, ok)
		assert.Equal(t, "default", target)
	})

	t.Run("json descriptor", func(t *testing.T) {
		entity, err := ParseEntity([]byte(`{"kind":"API","metadata":{"name":"orders","namespace":"Payments"}}`))
		require.NoError(t, err)
		assert.Equal(t, "api:payments/orders", entity.Ref().String())
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := ParseEntity([]byte("kind: Component\n"))
		assert.Error(t, err)
	})
}
