package discovery

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTXTRecords(t *testing.T) {
	assert.Equal(t, []string{"app=sketchturn"}, TXTRecords(""))
	assert.Equal(t, []string{"app=sketchturn", "url=http://10.0.0.2:3001/"}, TXTRecords("http://10.0.0.2:3001/"))
}

func TestLocalURL(t *testing.T) {
	u, err := url.Parse(LocalURL(3001))
	require.NoError(t, err)

	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "3001", u.Port())
	assert.NotEmpty(t, u.Hostname())
	assert.Equal(t, "/", u.Path)
}
