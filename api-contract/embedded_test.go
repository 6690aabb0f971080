package apicontract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apicontract "github.com/barguni/barguni-api/api-contract"
)

func TestLoad(t *testing.T) {
	doc, err := apicontract.Load()
	require.NoError(t, err)

	assert.NotNil(t, doc.Paths.Find("/products/resolve"))
	assert.NotNil(t, doc.Paths.Find("/pictures/{pictureId}/content"))
}
